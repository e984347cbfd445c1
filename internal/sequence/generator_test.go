package sequence

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"masterclass-pods/models"
)

func sampleBlueprint() models.Blueprint {
	return models.Blueprint{
		Niche:       "gut-health",
		DisplayName: "Gut Health Mini Diploma",
		Audience:    "busy parents",
		PainPoints:  []string{"bloating after every meal", "  ", "low energy in the afternoon"},
		Outcomes:    []string{"a simple food journal habit"},
		Objections:  []models.Objection{{Question: "Do I need a science background?", Answer: "No."}},
		Offer:       models.Offer{Name: "Level 1 Certification", Price: "$497", URL: "https://example.com/l1"},
		SenderName:  "Sarah",
	}
}

func TestGenerateShape(t *testing.T) {
	emails, err := Generate(sampleBlueprint(), Options{DayGap: 2})
	require.NoError(t, err)

	kinds := make([]string, len(emails))
	for i, e := range emails {
		kinds[i] = e.Kind
		assert.Equal(t, i+1, e.Position)
		assert.Equal(t, i*2, e.Day)
		assert.NotEmpty(t, e.Subject)
		assert.Contains(t, e.Body, "{firstName}", "first name is left for the sending tool")
		assert.NotContains(t, e.Body, "{offerName}")
	}
	assert.Equal(t, []string{
		KindWelcome, KindPainPoint, KindPainPoint, KindStory, KindObjection, KindOffer, KindLastCall,
	}, kinds)

	assert.Equal(t, "Welcome to Gut Health Mini Diploma, {firstName}", emails[0].Subject)
	assert.Contains(t, emails[3].Body, "- a simple food journal habit")
	assert.Contains(t, emails[5].Body, "Level 1 Certification is now open ($497).")
}

func TestGenerateIsDeterministic(t *testing.T) {
	a, err := Generate(sampleBlueprint(), Options{})
	require.NoError(t, err)
	b, err := Generate(sampleBlueprint(), Options{})
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestGenerateOptionalParts(t *testing.T) {
	bp := models.Blueprint{Niche: "sleep", Offer: models.Offer{Name: "Sleep Coach"}}
	emails, err := Generate(bp, Options{})
	require.NoError(t, err)
	require.Len(t, emails, 3)
	assert.Equal(t, KindWelcome, emails[0].Kind)
	assert.Contains(t, emails[0].Body, "The sleep team")
	assert.Equal(t, "Sleep Coach is now open.", strings.Split(emails[1].Body, "\n\n")[1])

	bp = sampleBlueprint()
	emails, err = Generate(bp, Options{MaxPainPoints: 1})
	require.NoError(t, err)
	assert.Equal(t, KindStory, emails[2].Kind)
}

func TestGenerateInvalid(t *testing.T) {
	_, err := Generate(models.Blueprint{Offer: models.Offer{Name: "x"}}, Options{})
	assert.ErrorIs(t, err, ErrInvalidBlueprint)

	_, err = Generate(models.Blueprint{Niche: "x"}, Options{})
	assert.ErrorIs(t, err, ErrInvalidBlueprint)
}

func TestShorten(t *testing.T) {
	assert.Equal(t, "short", shorten("short", 10))
	assert.Equal(t, "bloating after...", shorten("bloating after every meal", 18))
}

func TestLoadBlueprint(t *testing.T) {
	raw, err := json.Marshal(sampleBlueprint())
	require.NoError(t, err)

	bp, err := LoadBlueprint(bytes.NewReader(raw))
	require.NoError(t, err)
	assert.Equal(t, "gut-health", bp.Niche)

	_, err = LoadBlueprint(strings.NewReader(`{"niche":"x"}`))
	assert.ErrorIs(t, err, ErrInvalidBlueprint)
}

func TestExportXLSX(t *testing.T) {
	gut, err := Generate(sampleBlueprint(), Options{})
	require.NoError(t, err)
	sleep, err := Generate(models.Blueprint{Niche: "sleep/rest", Offer: models.Offer{Name: "Rest"}}, Options{})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, ExportXLSX(&buf, map[string][]models.SequenceEmail{"gut-health": gut, "sleep/rest": sleep}))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"gut-health", "sleep_rest"}, f.GetSheetList())
	rows, err := f.GetRows("gut-health")
	require.NoError(t, err)
	require.Len(t, rows, len(gut)+1)
	assert.Equal(t, xlsxHeaders, rows[0])
	assert.Equal(t, gut[0].Subject, rows[1][3])
}

func TestUniqueSheetName(t *testing.T) {
	used := map[string]bool{}
	long := strings.Repeat("a", 40)
	first := uniqueSheetName(long, used)
	second := uniqueSheetName(long, used)
	assert.Len(t, first, 31)
	assert.Len(t, second, 31)
	assert.NotEqual(t, first, second)
}
