package placeholder

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRender(t *testing.T) {
	vars := Vars{
		FirstName:         "Dana",
		PeerName:          "Maya",
		InstructorName:    "Sarah",
		Niche:             "gut health",
		FirstNameFallback: "there",
	}

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "no tokens here", "no tokens here"},
		{"first name", "Hi {firstName}!", "Hi Dana!"},
		{"peer alias", "{zombieName} and {peerName}", "Maya and Maya"},
		{"repeated", "{firstName}, {firstName}", "Dana, Dana"},
		{"unknown kept", "Hey {nickname}", "Hey {nickname}"},
		{"unterminated", "Hey {firstName", "Hey {firstName"},
		{"nested brace", "{{firstName}}", "{Dana}"},
		{"not a token", "{ firstName }", "{ firstName }"},
		{"empty braces", "{}", "{}"},
		{"niche", "Welcome to {niche} with {instructorName}", "Welcome to gut health with Sarah"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Render(tt.in, vars))
		})
	}
}

func TestRenderFirstNameFallback(t *testing.T) {
	got := Render("Hi {firstName}", Vars{FirstName: "  ", FirstNameFallback: "there"})
	assert.Equal(t, "Hi there", got)
}

func TestRenderOnly(t *testing.T) {
	got := RenderOnly("{offerName} for {firstName}", map[string]string{"offerName": "Level 1"})
	assert.Equal(t, "Level 1 for {firstName}", got)
}

func TestTokensAndUnknown(t *testing.T) {
	text := "{firstName} meet {zombieName}, {firstName}. {bogus} {x1}"
	assert.Equal(t, []string{"bogus", "firstName", "x1", "zombieName"}, Tokens(text))
	assert.Equal(t, []string{"bogus", "x1"}, Unknown(text))
}
