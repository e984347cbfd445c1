package delay

import (
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAndResolve(t *testing.T) {
	podStart := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	now := podStart.Add(5 * time.Minute)

	tests := []struct {
		input  string
		anchor Anchor
		want   time.Time
	}{
		{"now", AnchorNow, now},
		{"now+2min", AnchorNow, now.Add(2 * time.Minute)},
		{"NOW + 90s", AnchorNow, now.Add(90 * time.Second)},
		{"retroactive-1h", AnchorRetroactive, podStart.Add(-time.Hour)},
		{"retroactive-2h+30min", AnchorRetroactive, podStart.Add(-150 * time.Minute)},
		{"24h+15min", AnchorPodStart, podStart.Add(24*time.Hour + 15*time.Minute)},
		{"1day+2hrs", AnchorPodStart, podStart.Add(26 * time.Hour)},
		{"0min", AnchorPodStart, podStart},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			spec, err := Parse(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.anchor, spec.Anchor)
			assert.Equal(t, tt.want, spec.Resolve(podStart, now, nil))
		})
	}
}

func TestParseErrors(t *testing.T) {
	inputs := []string{"", "   ", "now+", "24h+", "retroactive-", "5weeks", "min", "5-2min", "-5min", "now+2min+x"}

	for _, in := range inputs {
		t.Run(in, func(t *testing.T) {
			_, err := Parse(in)
			require.Error(t, err)
			var pe *ParseError
			assert.True(t, errors.As(err, &pe))
			assert.Equal(t, in, pe.Input)
		})
	}
}

func TestRangeStaysInBounds(t *testing.T) {
	spec, err := Parse("now+2-5min")
	require.NoError(t, err)
	assert.True(t, spec.Randomized())

	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	rnd := rand.New(rand.NewSource(7))
	for i := 0; i < 200; i++ {
		got := spec.Resolve(now, now, rnd).Sub(now)
		assert.GreaterOrEqual(t, got, 2*time.Minute)
		assert.LessOrEqual(t, got, 5*time.Minute)
	}

	// without a source the lower bound is used
	assert.Equal(t, now.Add(2*time.Minute), spec.Resolve(now, now, nil))
}

func TestMustParsePanics(t *testing.T) {
	assert.Panics(t, func() { MustParse("soon") })
	assert.NotPanics(t, func() { MustParse("now+1h") })
}
