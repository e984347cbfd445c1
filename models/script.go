package models

// NicheScript is the day-numbered message script for one niche.
type NicheScript struct {
	Niche string      `json:"niche"`
	Name  string      `json:"name"`
	Days  []ScriptDay `json:"days"`
}

type ScriptDay struct {
	Day      int             `json:"day"`
	Messages []ScriptMessage `json:"messages"`
}

// ScriptMessage is one templated line. Delay uses the delay mini-language
// ("retroactive-1h", "now+2min", "24h+15min").
type ScriptMessage struct {
	Key    string `json:"key"`
	Sender string `json:"sender"`
	Delay  string `json:"delay"`
	Text   string `json:"text"`
}

// Day returns the script day with the given number.
func (s NicheScript) Day(n int) (ScriptDay, bool) {
	for _, d := range s.Days {
		if d.Day == n {
			return d, true
		}
	}
	return ScriptDay{}, false
}

// FirstDay is the lowest day number in the script, or 0 if empty.
func (s NicheScript) FirstDay() int {
	first := 0
	for i, d := range s.Days {
		if i == 0 || d.Day < first {
			first = d.Day
		}
	}
	return first
}

// LastDay is the highest day number in the script, or 0 if empty.
func (s NicheScript) LastDay() int {
	last := 0
	for _, d := range s.Days {
		if d.Day > last {
			last = d.Day
		}
	}
	return last
}
