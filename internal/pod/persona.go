package pod

import (
	"context"
	"fmt"
	"hash/fnv"

	"masterclass-pods/models"
)

// ResolvePersona picks the peer persona for a user in a niche. Personas of
// the niche are tried first, then those of the default niche. The choice is
// stable for a given user and roster.
func (m *Manager) ResolvePersona(ctx context.Context, niche, userID string) (*models.Persona, error) {
	candidates := []string{niche}
	if m.opts.DefaultNiche != "" && m.opts.DefaultNiche != niche {
		candidates = append(candidates, m.opts.DefaultNiche)
	}

	for _, n := range candidates {
		personas, err := m.store.ListPersonas(ctx, n)
		if err != nil {
			return nil, fmt.Errorf("list personas for %s: %w", n, err)
		}
		if len(personas) == 0 {
			continue
		}
		p := personas[pickIndex(userID, len(personas))]
		return &p, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrNoPersona, niche)
}

func pickIndex(userID string, n int) int {
	h := fnv.New32a()
	h.Write([]byte(userID))
	return int(h.Sum32() % uint32(n))
}
