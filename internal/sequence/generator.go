// Package sequence builds nurture email sequences from niche blueprints.
// Generation is pure: the same blueprint and options always give the same
// emails. {firstName} is left in place for the sending tool to fill.
package sequence

import (
	"errors"
	"fmt"
	"strings"

	"masterclass-pods/internal/placeholder"
	"masterclass-pods/models"
)

var ErrInvalidBlueprint = errors.New("invalid blueprint")

const (
	KindWelcome   = "welcome"
	KindPainPoint = "pain_point"
	KindStory     = "story"
	KindObjection = "objection"
	KindOffer     = "offer"
	KindLastCall  = "last_call"
)

type Options struct {
	// DayGap is the number of days between two emails. Defaults to 1.
	DayGap int
	// MaxPainPoints caps the pain-point emails. Zero means all.
	MaxPainPoints int
}

type template struct {
	kind    string
	subject string
	body    string
}

var (
	welcomeTmpl = template{
		kind:    KindWelcome,
		subject: "Welcome to {displayName}, {firstName}",
		body: "Hi {firstName},\n\n" +
			"Thanks for joining {displayName}. Over the next few days I'll share what I've learned working with {audience}.\n\n" +
			"Talk soon,\n{senderName}",
	}
	painPointTmpl = template{
		kind:    KindPainPoint,
		subject: "{firstName}, about {painPointShort}",
		body: "Hi {firstName},\n\n" +
			"One thing I hear again and again: {painPoint}.\n\n" +
			"If that sounds familiar, you're not alone, and it is something you can learn to work with.\n\n" +
			"{senderName}",
	}
	storyTmpl = template{
		kind:    KindStory,
		subject: "What changes when it clicks",
		body: "Hi {firstName},\n\n" +
			"{story}{outcomes}" +
			"{senderName}",
	}
	objectionTmpl = template{
		kind:    KindObjection,
		subject: "\"{question}\"",
		body: "Hi {firstName},\n\n" +
			"A question that comes up a lot: {question}\n\n" +
			"{answer}\n\n" +
			"{senderName}",
	}
	offerTmpl = template{
		kind:    KindOffer,
		subject: "{offerName} is open",
		body: "Hi {firstName},\n\n" +
			"{offerName} is now open{priceClause}.\n\n" +
			"Details: {offerURL}\n\n" +
			"{senderName}",
	}
	lastCallTmpl = template{
		kind:    KindLastCall,
		subject: "Last note about {offerName}",
		body: "Hi {firstName},\n\n" +
			"This is my last email about {offerName}{deadlineClause}. If it's not the right time, no problem at all.\n\n" +
			"{offerURL}\n\n" +
			"{senderName}",
	}
)

// Validate checks the fields every sequence needs.
func Validate(bp models.Blueprint) error {
	if strings.TrimSpace(bp.Niche) == "" {
		return fmt.Errorf("%w: niche is required", ErrInvalidBlueprint)
	}
	if strings.TrimSpace(bp.Offer.Name) == "" {
		return fmt.Errorf("%w: %s: offer name is required", ErrInvalidBlueprint, bp.Niche)
	}
	return nil
}

// Generate returns the ordered emails for bp: welcome, one per pain point,
// a story email when there is a story or outcomes, one per objection, the
// offer and a last call.
func Generate(bp models.Blueprint, opts Options) ([]models.SequenceEmail, error) {
	if err := Validate(bp); err != nil {
		return nil, err
	}
	if opts.DayGap <= 0 {
		opts.DayGap = 1
	}

	base := baseValues(bp)
	var emails []models.SequenceEmail
	add := func(t template, extra map[string]string) {
		values := base
		if len(extra) > 0 {
			values = merge(base, extra)
		}
		pos := len(emails) + 1
		emails = append(emails, models.SequenceEmail{
			Position: pos,
			Day:      (pos - 1) * opts.DayGap,
			Kind:     t.kind,
			Subject:  placeholder.RenderOnly(t.subject, values),
			Body:     placeholder.RenderOnly(t.body, values),
		})
	}

	add(welcomeTmpl, nil)

	pains := nonEmpty(bp.PainPoints)
	if opts.MaxPainPoints > 0 && len(pains) > opts.MaxPainPoints {
		pains = pains[:opts.MaxPainPoints]
	}
	for _, p := range pains {
		add(painPointTmpl, map[string]string{"painPoint": p, "painPointShort": shorten(p, 40)})
	}

	outcomes := nonEmpty(bp.Outcomes)
	if strings.TrimSpace(bp.Story) != "" || len(outcomes) > 0 {
		story := strings.TrimSpace(bp.Story)
		if story != "" {
			story += "\n\n"
		}
		list := ""
		if len(outcomes) > 0 {
			list = "Here is what people usually walk away with:\n" + bullets(outcomes) + "\n\n"
		}
		add(storyTmpl, map[string]string{"story": story, "outcomes": list})
	}

	for _, o := range bp.Objections {
		if strings.TrimSpace(o.Question) == "" {
			continue
		}
		add(objectionTmpl, map[string]string{
			"question": strings.TrimSpace(o.Question),
			"answer":   strings.TrimSpace(o.Answer),
		})
	}

	add(offerTmpl, nil)
	add(lastCallTmpl, nil)
	return emails, nil
}

// GenerateAll runs Generate for every blueprint, keyed by niche.
func GenerateAll(bps []models.Blueprint, opts Options) (map[string][]models.SequenceEmail, error) {
	out := make(map[string][]models.SequenceEmail, len(bps))
	for _, bp := range bps {
		emails, err := Generate(bp, opts)
		if err != nil {
			return nil, err
		}
		out[bp.Niche] = emails
	}
	return out, nil
}

func baseValues(bp models.Blueprint) map[string]string {
	display := strings.TrimSpace(bp.DisplayName)
	if display == "" {
		display = bp.Niche
	}
	audience := strings.TrimSpace(bp.Audience)
	if audience == "" {
		audience = "people like you"
	}
	sender := strings.TrimSpace(bp.SenderName)
	if sender == "" {
		sender = "The " + display + " team"
	}

	priceClause := ""
	if p := strings.TrimSpace(bp.Offer.Price); p != "" {
		priceClause = " (" + p + ")"
	}
	deadlineClause := ""
	if d := strings.TrimSpace(bp.Offer.Deadline); d != "" {
		deadlineClause = " before it closes " + d
	}

	return map[string]string{
		"displayName":    display,
		"audience":       audience,
		"senderName":     sender,
		"offerName":      strings.TrimSpace(bp.Offer.Name),
		"offerURL":       strings.TrimSpace(bp.Offer.URL),
		"priceClause":    priceClause,
		"deadlineClause": deadlineClause,
	}
}

func merge(a, b map[string]string) map[string]string {
	out := make(map[string]string, len(a)+len(b))
	for k, v := range a {
		out[k] = v
	}
	for k, v := range b {
		out[k] = v
	}
	return out
}

func nonEmpty(in []string) []string {
	var out []string
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func bullets(items []string) string {
	lines := make([]string, len(items))
	for i, it := range items {
		lines[i] = "- " + it
	}
	return strings.Join(lines, "\n")
}

// shorten cuts s to at most n runes on a word boundary.
func shorten(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	cut := string(r[:n])
	if i := strings.LastIndex(cut, " "); i > 0 {
		cut = cut[:i]
	}
	return strings.TrimRight(cut, " ,.;:") + "..."
}
