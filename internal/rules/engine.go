package rules

import (
	"log/slog"
	"slices"
	"sync"

	"git.home.luguber.info/inful/mobilecore/internal/event"
	"git.home.luguber.info/inful/mobilecore/internal/logfields"
)

// Engine holds the rules registered by each module.
type Engine struct {
	parser *TokenParser
	logger *slog.Logger

	mu      sync.RWMutex
	order   []string
	byOwner map[string][]*Rule
}

// NewEngine returns an engine expanding tokens with parser.
func NewEngine(parser *TokenParser, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if parser == nil {
		parser = NewTokenParser(nil, "")
	}
	return &Engine{parser: parser, logger: logger, byOwner: make(map[string][]*Rule)}
}

// Parser returns the engine's token parser.
func (en *Engine) Parser() *TokenParser { return en.parser }

// Add appends rules owned by module.
func (en *Engine) Add(module string, rules ...*Rule) {
	en.mu.Lock()
	defer en.mu.Unlock()
	if _, ok := en.byOwner[module]; !ok {
		en.order = append(en.order, module)
	}
	en.byOwner[module] = append(en.byOwner[module], rules...)
}

// Replace swaps every rule owned by module for rules.
func (en *Engine) Replace(module string, rules []*Rule) {
	en.mu.Lock()
	defer en.mu.Unlock()
	if _, ok := en.byOwner[module]; !ok {
		en.order = append(en.order, module)
	}
	en.byOwner[module] = slices.Clone(rules)
}

// Remove drops every rule owned by module.
func (en *Engine) Remove(module string) {
	en.mu.Lock()
	defer en.mu.Unlock()
	delete(en.byOwner, module)
	en.order = slices.DeleteFunc(en.order, func(m string) bool { return m == module })
}

// Count returns the number of rules owned by module.
func (en *Engine) Count(module string) int {
	en.mu.RLock()
	defer en.mu.RUnlock()
	return len(en.byOwner[module])
}

// Evaluate returns the consequences of every rule matching e, in module
// registration then rule order, with tokens in their details expanded.
func (en *Engine) Evaluate(e *event.Event) []Consequence {
	en.mu.RLock()
	var candidates []*Rule
	for _, owner := range en.order {
		candidates = append(candidates, en.byOwner[owner]...)
	}
	en.mu.RUnlock()

	ctx := &Context{Event: e, Parser: en.parser}
	var out []Consequence
	for _, r := range candidates {
		if !r.Matches(ctx) {
			continue
		}
		en.logger.Debug("Rule matched", logfields.Rule(r.ID), logfields.EventName(e.Name()))
		for _, c := range r.Consequences {
			out = append(out, Consequence{
				ID:     c.ID,
				Type:   c.Type,
				Detail: en.parser.ExpandMap(c.Detail, e),
			})
		}
	}
	return out
}
