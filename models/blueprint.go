package models

// Blueprint describes a niche for the nurture email generator.
type Blueprint struct {
	Niche       string      `json:"niche"`
	DisplayName string      `json:"display_name"`
	Audience    string      `json:"audience"`
	PainPoints  []string    `json:"pain_points"`
	Outcomes    []string    `json:"outcomes"`
	Objections  []Objection `json:"objections"`
	Story       string      `json:"story"`
	Offer       Offer       `json:"offer"`
	SenderName  string      `json:"sender_name"`
}

type Objection struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

type Offer struct {
	Name     string `json:"name"`
	Price    string `json:"price"`
	URL      string `json:"url"`
	Deadline string `json:"deadline"`
}

// SequenceEmail is one email of a generated nurture sequence.
type SequenceEmail struct {
	Position int    `json:"position"`
	Day      int    `json:"day"`
	Kind     string `json:"kind"`
	Subject  string `json:"subject"`
	Body     string `json:"body"`
}
