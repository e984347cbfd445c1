// Package placeholder fills {token} placeholders in script and email text.
package placeholder

import (
	"sort"
	"strings"
)

// Vars holds the values for one rendering.
type Vars struct {
	FirstName      string
	PeerName       string
	InstructorName string
	Niche          string
	PodName        string

	// FirstNameFallback replaces an empty FirstName.
	FirstNameFallback string
}

// Known lists the tokens Render substitutes.
var Known = map[string]bool{
	"firstName":      true,
	"zombieName":     true,
	"peerName":       true,
	"instructorName": true,
	"niche":          true,
	"podName":        true,
}

func (v Vars) lookup(name string) (string, bool) {
	switch name {
	case "firstName":
		if strings.TrimSpace(v.FirstName) == "" {
			return v.FirstNameFallback, true
		}
		return strings.TrimSpace(v.FirstName), true
	case "zombieName", "peerName":
		return v.PeerName, true
	case "instructorName":
		return v.InstructorName, true
	case "niche":
		return v.Niche, true
	case "podName":
		return v.PodName, true
	}
	return "", false
}

// Render substitutes known tokens. Unknown tokens and stray braces are kept
// as written.
func Render(text string, vars Vars) string {
	return replace(text, vars.lookup)
}

// RenderOnly substitutes only the tokens present in values, leaving the
// rest for a later pass.
func RenderOnly(text string, values map[string]string) string {
	return replace(text, func(name string) (string, bool) {
		v, ok := values[name]
		return v, ok
	})
}

// Tokens returns the distinct token names used in text, sorted.
func Tokens(text string) []string {
	seen := map[string]bool{}
	replace(text, func(name string) (string, bool) {
		seen[name] = true
		return "", false
	})
	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Unknown returns the tokens in text that Render would leave untouched.
func Unknown(text string) []string {
	var out []string
	for _, name := range Tokens(text) {
		if !Known[name] {
			out = append(out, name)
		}
	}
	return out
}

func replace(text string, lookup func(string) (string, bool)) string {
	if !strings.Contains(text, "{") {
		return text
	}

	var b strings.Builder
	b.Grow(len(text))
	for i := 0; i < len(text); {
		if text[i] != '{' {
			b.WriteByte(text[i])
			i++
			continue
		}
		end := strings.IndexByte(text[i+1:], '}')
		if end < 0 {
			b.WriteString(text[i:])
			break
		}
		name := text[i+1 : i+1+end]
		if !validName(name) {
			b.WriteByte('{')
			i++
			continue
		}
		if v, ok := lookup(name); ok {
			b.WriteString(v)
		} else {
			b.WriteString(text[i : i+end+2])
		}
		i += end + 2
	}
	return b.String()
}

func validName(name string) bool {
	if name == "" {
		return false
	}
	for i, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case i > 0 && (r >= '0' && r <= '9' || r == '_'):
		default:
			return false
		}
	}
	return true
}
