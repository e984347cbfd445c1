// Package scripts loads and validates the per-niche pod scripts.
package scripts

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"masterclass-pods/internal/delay"
	"masterclass-pods/internal/placeholder"
	"masterclass-pods/models"
)

var ErrInvalidScript = errors.New("invalid script")

// Parse decodes one JSON script and validates it.
func Parse(r io.Reader) (models.NicheScript, error) {
	var s models.NicheScript
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&s); err != nil {
		return models.NicheScript{}, fmt.Errorf("decode script: %w", err)
	}
	if err := Validate(s); err != nil {
		return models.NicheScript{}, err
	}
	sort.Slice(s.Days, func(i, j int) bool { return s.Days[i].Day < s.Days[j].Day })
	return s, nil
}

// Validate checks delays, senders, tokens and key uniqueness.
func Validate(s models.NicheScript) error {
	if strings.TrimSpace(s.Niche) == "" {
		return fmt.Errorf("%w: niche is required", ErrInvalidScript)
	}
	if len(s.Days) == 0 {
		return fmt.Errorf("%w: %s has no days", ErrInvalidScript, s.Niche)
	}

	days := map[int]bool{}
	keys := map[string]bool{}
	for _, d := range s.Days {
		if d.Day < 1 {
			return fmt.Errorf("%w: %s day %d must be >= 1", ErrInvalidScript, s.Niche, d.Day)
		}
		if days[d.Day] {
			return fmt.Errorf("%w: %s day %d repeated", ErrInvalidScript, s.Niche, d.Day)
		}
		days[d.Day] = true

		for _, m := range d.Messages {
			if m.Key == "" {
				return fmt.Errorf("%w: %s day %d has a message without key", ErrInvalidScript, s.Niche, d.Day)
			}
			if keys[m.Key] {
				return fmt.Errorf("%w: %s key %q repeated", ErrInvalidScript, s.Niche, m.Key)
			}
			keys[m.Key] = true

			switch m.Sender {
			case models.SenderInstructor, models.SenderPeer:
			default:
				return fmt.Errorf("%w: %s key %q has sender %q", ErrInvalidScript, s.Niche, m.Key, m.Sender)
			}
			if _, err := delay.Parse(m.Delay); err != nil {
				return fmt.Errorf("%w: %s key %q: %v", ErrInvalidScript, s.Niche, m.Key, err)
			}
			if unknown := placeholder.Unknown(m.Text); len(unknown) > 0 {
				return fmt.Errorf("%w: %s key %q uses unknown tokens %v", ErrInvalidScript, s.Niche, m.Key, unknown)
			}
		}
	}
	return nil
}

// LoadDir reads every *.json script in dir, keyed by niche.
func LoadDir(dir string) (map[string]models.NicheScript, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return nil, err
	}

	out := make(map[string]models.NicheScript, len(paths))
	for _, p := range paths {
		s, err := loadFile(p)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", filepath.Base(p), err)
		}
		if _, dup := out[s.Niche]; dup {
			return nil, fmt.Errorf("%s: %w: niche %q defined twice", filepath.Base(p), ErrInvalidScript, s.Niche)
		}
		out[s.Niche] = s
	}
	return out, nil
}

func loadFile(path string) (models.NicheScript, error) {
	f, err := os.Open(path)
	if err != nil {
		return models.NicheScript{}, err
	}
	defer f.Close()
	return Parse(f)
}
