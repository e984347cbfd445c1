package scripts

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"masterclass-pods/models"
)

func TestLoadDir(t *testing.T) {
	got, err := LoadDir("testdata")
	require.NoError(t, err)
	require.Contains(t, got, "gut-health")

	s := got["gut-health"]
	assert.Equal(t, 1, s.FirstDay())
	assert.Equal(t, 2, s.LastDay())
	assert.Equal(t, 1, s.Days[0].Day, "days are sorted")
}

func TestValidate(t *testing.T) {
	valid := func() models.NicheScript {
		return models.NicheScript{
			Niche: "sleep",
			Days: []models.ScriptDay{{
				Day: 1,
				Messages: []models.ScriptMessage{
					{Key: "a", Sender: models.SenderInstructor, Delay: "now", Text: "Hi {firstName}"},
				},
			}},
		}
	}

	tests := []struct {
		name   string
		mutate func(*models.NicheScript)
	}{
		{"no niche", func(s *models.NicheScript) { s.Niche = "" }},
		{"no days", func(s *models.NicheScript) { s.Days = nil }},
		{"day zero", func(s *models.NicheScript) { s.Days[0].Day = 0 }},
		{"bad delay", func(s *models.NicheScript) { s.Days[0].Messages[0].Delay = "whenever" }},
		{"bad sender", func(s *models.NicheScript) { s.Days[0].Messages[0].Sender = "user" }},
		{"unknown token", func(s *models.NicheScript) { s.Days[0].Messages[0].Text = "{coupon}" }},
		{"missing key", func(s *models.NicheScript) { s.Days[0].Messages[0].Key = "" }},
		{"duplicate key", func(s *models.NicheScript) {
			s.Days = append(s.Days, models.ScriptDay{Day: 2, Messages: []models.ScriptMessage{s.Days[0].Messages[0]}})
		}},
		{"duplicate day", func(s *models.NicheScript) {
			s.Days = append(s.Days, models.ScriptDay{Day: 1})
		}},
	}

	require.NoError(t, Validate(valid()))
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := valid()
			tt.mutate(&s)
			err := Validate(s)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidScript))
		})
	}
}

func TestParseRejectsUnknownFields(t *testing.T) {
	_, err := Parse(strings.NewReader(`{"niche":"x","days":[],"extra":1}`))
	require.Error(t, err)
}

func TestLoadDirDuplicateNiche(t *testing.T) {
	dir := t.TempDir()
	src, err := os.ReadFile(filepath.Join("testdata", "gut-health.json"))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.json"), src, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.json"), src, 0o644))

	_, err = LoadDir(dir)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidScript))
}
