package rules

import (
	"git.home.luguber.info/inful/mobilecore/internal/event"
	"git.home.luguber.info/inful/mobilecore/internal/foundation/normalization"
)

// Context carries the triggering event and the parser used to expand keys.
type Context struct {
	Event  *event.Event
	Parser *TokenParser
}

// Condition is a node of a rule's condition tree.
type Condition interface {
	Evaluate(ctx *Context) bool
}

// Logic combines the conditions of a Group.
type Logic string

const (
	LogicAnd Logic = "and"
	LogicOr  Logic = "or"
)

var logicNormalizer = normalization.NewNormalizer(map[string]Logic{
	"and": LogicAnd,
	"or":  LogicOr,
}, "")

// ParseLogic returns the logic named by s, or "" when unknown.
func ParseLogic(s string) Logic { return logicNormalizer.Normalize(s) }

// Group evaluates its conditions with and/or logic. An empty and-group is
// true and an empty or-group is false.
type Group struct {
	Logic      Logic
	Conditions []Condition
}

// Evaluate implements Condition.
func (g *Group) Evaluate(ctx *Context) bool {
	if g.Logic == LogicOr {
		for _, c := range g.Conditions {
			if c.Evaluate(ctx) {
				return true
			}
		}
		return false
	}
	for _, c := range g.Conditions {
		if !c.Evaluate(ctx) {
			return false
		}
	}
	return true
}

// And returns an and-group of conditions.
func And(conditions ...Condition) *Group { return &Group{Logic: LogicAnd, Conditions: conditions} }

// Or returns an or-group of conditions.
func Or(conditions ...Condition) *Group { return &Group{Logic: LogicOr, Conditions: conditions} }

// Match returns a matcher condition.
func Match(key string, op Op, values ...any) *Matcher {
	return &Matcher{Key: key, Op: op, Values: values}
}
