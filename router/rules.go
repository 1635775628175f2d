package router

import "strings"

// FallbackLabel is the category of tasks no rule matches.
const FallbackLabel = "generic"

// Rule maps task keywords to a category label.
type Rule struct {
	Label    string
	Keywords []string
}

// DefaultRules is the classification table, checked in order.
var DefaultRules = []Rule{
	{Label: "debug", Keywords: []string{"debug"}},
	{Label: "journal", Keywords: []string{"journal"}},
	{Label: "finance", Keywords: []string{"finance"}},
	{Label: "hr", Keywords: []string{"hr", "recruit"}},
	{Label: "operations", Keywords: []string{"operations"}},
	{Label: "marketing", Keywords: []string{"marketing"}},
}

// Classify returns the label of the first rule with a keyword occurring in
// text, ignoring case, or FallbackLabel.
func Classify(rules []Rule, text string) string {
	lower := strings.ToLower(text)
	for _, rule := range rules {
		for _, kw := range rule.Keywords {
			if kw != "" && strings.Contains(lower, strings.ToLower(kw)) {
				return rule.Label
			}
		}
	}
	return FallbackLabel
}

func cloneRules(rules []Rule) []Rule {
	out := make([]Rule, len(rules))
	for i, r := range rules {
		out[i] = Rule{Label: r.Label, Keywords: append([]string(nil), r.Keywords...)}
	}
	return out
}
