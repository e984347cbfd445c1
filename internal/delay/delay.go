// Package delay parses the delay strings used by pod scripts, such as
// "retroactive-1h", "now+2min" and "24h+15min", and resolves them to an
// absolute send time.
package delay

import (
	"fmt"
	"math/rand"
	"strconv"
	"strings"
	"time"
)

// Anchor is the instant a delay is measured from.
type Anchor int

const (
	// AnchorPodStart measures from the pod's start time ("24h+15min").
	AnchorPodStart Anchor = iota
	// AnchorNow measures from the moment the message is scheduled ("now+2min").
	AnchorNow
	// AnchorRetroactive measures backwards from the pod start ("retroactive-1h").
	AnchorRetroactive
)

func (a Anchor) String() string {
	switch a {
	case AnchorNow:
		return "now"
	case AnchorRetroactive:
		return "retroactive"
	default:
		return "pod_start"
	}
}

// Term is one "<amount><unit>" component. Min == Max for fixed amounts.
type Term struct {
	Min time.Duration
	Max time.Duration
}

// Spec is a parsed delay string.
type Spec struct {
	Raw    string
	Anchor Anchor
	Terms  []Term
}

// ParseError reports a malformed delay string.
type ParseError struct {
	Input  string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid delay %q: %s", e.Input, e.Reason)
}

var units = map[string]time.Duration{
	"s":    time.Second,
	"sec":  time.Second,
	"secs": time.Second,
	"m":    time.Minute,
	"min":  time.Minute,
	"mins": time.Minute,
	"h":    time.Hour,
	"hr":   time.Hour,
	"hrs":  time.Hour,
	"d":    24 * time.Hour,
	"day":  24 * time.Hour,
	"days": 24 * time.Hour,
}

// Parse parses a delay string.
func Parse(input string) (Spec, error) {
	s := strings.ToLower(strings.Join(strings.Fields(input), ""))
	if s == "" {
		return Spec{}, &ParseError{Input: input, Reason: "empty"}
	}

	spec := Spec{Raw: input, Anchor: AnchorPodStart}
	switch {
	case s == "now":
		spec.Anchor = AnchorNow
		return spec, nil
	case strings.HasPrefix(s, "now+"):
		spec.Anchor = AnchorNow
		s = strings.TrimPrefix(s, "now+")
	case strings.HasPrefix(s, "retroactive-"):
		spec.Anchor = AnchorRetroactive
		s = strings.TrimPrefix(s, "retroactive-")
	}

	for _, part := range strings.Split(s, "+") {
		term, err := parseTerm(part)
		if err != nil {
			return Spec{}, &ParseError{Input: input, Reason: err.Error()}
		}
		spec.Terms = append(spec.Terms, term)
	}
	return spec, nil
}

// MustParse is Parse for static script data; it panics on error.
func MustParse(input string) Spec {
	spec, err := Parse(input)
	if err != nil {
		panic(err)
	}
	return spec
}

func parseTerm(part string) (Term, error) {
	if part == "" {
		return Term{}, fmt.Errorf("empty term")
	}

	i := 0
	for i < len(part) && (part[i] >= '0' && part[i] <= '9' || part[i] == '-') {
		i++
	}
	amount, unitName := part[:i], part[i:]
	if amount == "" {
		return Term{}, fmt.Errorf("missing amount in %q", part)
	}
	unit, ok := units[unitName]
	if !ok {
		return Term{}, fmt.Errorf("unknown unit %q", unitName)
	}

	lo, hi := amount, amount
	if idx := strings.Index(amount, "-"); idx >= 0 {
		lo, hi = amount[:idx], amount[idx+1:]
	}
	minN, err := strconv.Atoi(lo)
	if err != nil {
		return Term{}, fmt.Errorf("bad amount %q", amount)
	}
	maxN, err := strconv.Atoi(hi)
	if err != nil {
		return Term{}, fmt.Errorf("bad amount %q", amount)
	}
	if minN > maxN {
		return Term{}, fmt.Errorf("range %q is reversed", amount)
	}

	return Term{Min: time.Duration(minN) * unit, Max: time.Duration(maxN) * unit}, nil
}

// Offset sums the terms. Ranged terms draw uniformly from [Min, Max] using
// rnd; a nil rnd always takes Min.
func (s Spec) Offset(rnd *rand.Rand) time.Duration {
	var total time.Duration
	for _, t := range s.Terms {
		d := t.Min
		if rnd != nil && t.Max > t.Min {
			d += time.Duration(rnd.Int63n(int64(t.Max-t.Min) + 1))
		}
		total += d
	}
	return total
}

// Randomized reports whether any term is a range.
func (s Spec) Randomized() bool {
	for _, t := range s.Terms {
		if t.Max > t.Min {
			return true
		}
	}
	return false
}

// Resolve returns the absolute send time for the delay.
func (s Spec) Resolve(podStart, now time.Time, rnd *rand.Rand) time.Time {
	offset := s.Offset(rnd)
	switch s.Anchor {
	case AnchorNow:
		return now.Add(offset)
	case AnchorRetroactive:
		return podStart.Add(-offset)
	default:
		return podStart.Add(offset)
	}
}

// Retroactive reports whether the resolved time lies before the pod start.
func (s Spec) Retroactive() bool {
	return s.Anchor == AnchorRetroactive
}
