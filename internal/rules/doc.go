// Package rules evaluates event-driven rules and expands {%token%}
// placeholders in rule consequences.
//
// A Rule pairs a Condition tree with Consequences. Conditions are Groups
// (and/or) of Matchers; a Matcher expands its key against the triggering
// event with the TokenParser and compares the result with its values. The
// Engine keeps rules per owning module and returns the consequences of every
// matching rule with their detail strings token-expanded.
package rules
