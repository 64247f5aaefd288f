package graphdb

import "strings"

type guidanceRule struct {
	match []string
	hint  string
}

var syntaxGuidance = []guidanceRule{
	{
		match: []string{"exists(", "property existence"},
		hint:  "SYNTAX UPDATE REQUIRED: Replace 'exists(n.property)' with 'n.property IS NOT NULL'.",
	},
	{
		match: []string{"contains", "starts with", "ends with"},
		hint:  "Check case sensitivity of string predicates; wrap both sides in toLower() for case-insensitive matching.",
	},
	{
		match: []string{"size(", "pattern expression"},
		hint:  "SYNTAX UPDATE REQUIRED: Pattern expressions inside size() are no longer supported; use COUNT { (n)-->() } instead.",
	},
	{
		match: []string{"id("},
		hint:  "id() is deprecated; use elementId() or a stable business key such as n.name.",
	},
	{
		match: []string{"parameter missing", "expected parameter"},
		hint:  "A $parameter referenced by the statement was not supplied.",
	},
	{
		match: []string{"not defined"},
		hint:  "A variable is used before it is bound; check WITH clauses carry it forward.",
	},
}

// SyntaxGuidance returns a remediation hint for a syntax error message, or "".
func SyntaxGuidance(message string) string {
	lower := strings.ToLower(message)
	for _, rule := range syntaxGuidance {
		for _, m := range rule.match {
			if strings.Contains(lower, m) {
				return rule.hint
			}
		}
	}
	return ""
}
