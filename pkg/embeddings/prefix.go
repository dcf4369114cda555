package embeddings

import "strings"

// Prefix holds the instruction strings a model family expects in front of
// indexed content and search queries.
type Prefix struct {
	Document string
	Query    string
}

// PrefixRule associates a model-name pattern with its prefixes. The pattern
// matches case-insensitively as a substring of the configured model
// identifier, so "nomic" covers nomic-embed-text, nomic-embed-text-v1.5 and
// friends.
type PrefixRule struct {
	Pattern string
	Prefix  Prefix
}

// PrefixTable is an ordered list of prefix rules. The first matching rule
// wins. Models with no matching rule get empty prefixes, which is the safe
// default for models whose conventions we don't know.
type PrefixTable []PrefixRule

// DefaultPrefixTable covers the model families with a documented prefix
// convention. The nomic embedding family requires task prefixes to separate
// document embeddings from query embeddings.
func DefaultPrefixTable() PrefixTable {
	return PrefixTable{
		{
			Pattern: "nomic",
			Prefix: Prefix{
				Document: "search_document: ",
				Query:    "search_query: ",
			},
		},
	}
}

// Lookup returns the prefixes for a model identifier, or zero prefixes when
// no rule matches.
func (t PrefixTable) Lookup(model string) Prefix {
	lowered := strings.ToLower(model)
	for _, rule := range t {
		if strings.Contains(lowered, strings.ToLower(rule.Pattern)) {
			return rule.Prefix
		}
	}
	return Prefix{}
}

// Apply prepends the model's prefix for the given role to text.
func (t PrefixTable) Apply(model string, role Role, text string) string {
	p := t.Lookup(model)
	if role == RoleQuery {
		return p.Query + text
	}
	return p.Document + text
}
