package rules

import "git.home.luguber.info/inful/mobilecore/internal/event"

// Consequence is the action a matching rule triggers.
type Consequence struct {
	ID     string
	Type   string
	Detail map[string]any
}

// EventData renders the consequence the way it travels inside a rules
// engine response event.
func (c Consequence) EventData() event.Data {
	detail := event.Data(c.Detail).Copy()
	if detail == nil {
		detail = event.Data{}
	}
	return event.Data{
		KeyTriggeredConsequence: map[string]any{
			KeyConsequenceID:     c.ID,
			KeyConsequenceType:   c.Type,
			KeyConsequenceDetail: map[string]any(detail),
		},
	}
}

// Keys of a rules engine response event.
const (
	KeyTriggeredConsequence = "triggeredconsequence"
	KeyConsequenceID        = "id"
	KeyConsequenceType      = "type"
	KeyConsequenceDetail    = "detail"
)

// ConsequenceFromData extracts a consequence from a rules engine response
// event's data.
func ConsequenceFromData(d event.Data) (Consequence, bool) {
	raw, ok := d.GetMap(KeyTriggeredConsequence)
	if !ok {
		return Consequence{}, false
	}
	c := Consequence{
		ID:   raw.StringOr(KeyConsequenceID, ""),
		Type: raw.StringOr(KeyConsequenceType, ""),
	}
	if detail, ok := raw.GetMap(KeyConsequenceDetail); ok {
		c.Detail = map[string]any(detail)
	}
	return c, c.Type != ""
}

// Rule triggers its consequences when its condition holds.
type Rule struct {
	ID           string
	Condition    Condition
	Consequences []Consequence
}

// Matches evaluates the rule's condition. A rule without a condition never matches.
func (r *Rule) Matches(ctx *Context) bool {
	return r.Condition != nil && r.Condition.Evaluate(ctx)
}
