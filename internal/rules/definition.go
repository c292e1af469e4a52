package rules

import (
	"fmt"

	"git.home.luguber.info/inful/mobilecore/internal/foundation/errors"
)

// ErrInvalidRule is the cause of every rule compilation failure.
var ErrInvalidRule = errors.RulesError("invalid rule").Build()

// Definition is the configuration form of a rule.
type Definition struct {
	ID           string                  `yaml:"id"`
	Condition    ConditionDefinition     `yaml:"condition"`
	Consequences []ConsequenceDefinition `yaml:"consequences,omitempty"`
}

// ConditionDefinition is either a group (Logic + Conditions) or a matcher
// (Key + Matcher + Values).
type ConditionDefinition struct {
	Logic      string                `yaml:"logic,omitempty"`
	Conditions []ConditionDefinition `yaml:"conditions,omitempty"`
	Key        string                `yaml:"key,omitempty"`
	Matcher    string                `yaml:"matcher,omitempty"`
	Values     []any                 `yaml:"values,omitempty"`
}

// ConsequenceDefinition is the configuration form of a consequence.
type ConsequenceDefinition struct {
	ID     string         `yaml:"id"`
	Type   string         `yaml:"type"`
	Detail map[string]any `yaml:"detail,omitempty"`
}

func invalid(ruleID, path, reason string) error {
	return errors.WrapError(ErrInvalidRule, errors.CategoryRules, fmt.Sprintf("rule %q: %s: %s", ruleID, path, reason)).
		WithContext("rule", ruleID).
		WithContext("path", path).
		Build()
}

// Compile validates the definition and builds the rule.
func (d Definition) Compile() (*Rule, error) {
	if d.ID == "" {
		return nil, invalid(d.ID, "id", "cannot be empty")
	}
	cond, err := d.Condition.compile(d.ID, "condition")
	if err != nil {
		return nil, err
	}
	r := &Rule{ID: d.ID, Condition: cond}
	for i, c := range d.Consequences {
		path := fmt.Sprintf("consequences[%d]", i)
		if c.ID == "" {
			return nil, invalid(d.ID, path+".id", "cannot be empty")
		}
		if c.Type == "" {
			return nil, invalid(d.ID, path+".type", "cannot be empty")
		}
		r.Consequences = append(r.Consequences, Consequence{ID: c.ID, Type: c.Type, Detail: c.Detail})
	}
	return r, nil
}

func (c ConditionDefinition) compile(ruleID, path string) (Condition, error) {
	if c.Logic != "" || len(c.Conditions) > 0 {
		logic := LogicAnd
		if c.Logic != "" {
			logic = ParseLogic(c.Logic)
			if logic == "" {
				return nil, invalid(ruleID, path+".logic", fmt.Sprintf("unknown logic %q", c.Logic))
			}
		}
		if len(c.Conditions) == 0 {
			return nil, invalid(ruleID, path+".conditions", "group needs at least one condition")
		}
		g := &Group{Logic: logic}
		for i, child := range c.Conditions {
			cc, err := child.compile(ruleID, fmt.Sprintf("%s.conditions[%d]", path, i))
			if err != nil {
				return nil, err
			}
			g.Conditions = append(g.Conditions, cc)
		}
		return g, nil
	}

	if c.Key == "" {
		return nil, invalid(ruleID, path+".key", "cannot be empty")
	}
	op := ParseOp(c.Matcher)
	if op == "" {
		return nil, invalid(ruleID, path+".matcher", fmt.Sprintf("unknown matcher %q", c.Matcher))
	}
	if op.needsValues() && len(c.Values) == 0 {
		return nil, invalid(ruleID, path+".values", fmt.Sprintf("matcher %q needs values", op))
	}
	return &Matcher{Key: c.Key, Op: op, Values: c.Values}, nil
}

// CompileAll compiles every definition, stopping at the first error.
func CompileAll(defs []Definition) ([]*Rule, error) {
	out := make([]*Rule, 0, len(defs))
	for _, d := range defs {
		r, err := d.Compile()
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}
