package debugger

import (
	"context"
	"strings"
)

// Fix maps a problem keyword to canned advice.
type Fix struct {
	Keyword string `json:"keyword" yaml:"keyword"`
	Advice  string `json:"advice" yaml:"advice"`
}

// DefaultCatalog is consulted in order; the first keyword contained in the
// problem text wins.
var DefaultCatalog = []Fix{
	{"NameError", "A name is used before it is defined. Check for typos, a missing import, or a variable referenced outside its scope."},
	{"ModuleNotFoundError", "The module is not installed. Install it or fix the module path."},
	{"ImportError", "A module could not be imported. Verify the package is installed and the import path is correct."},
	{"SyntaxError", "The source does not parse. Check the reported line for unbalanced brackets, quotes, or a missing colon."},
	{"AttributeError", "The object has no such attribute. Check the object's type and the attribute spelling."},
	{"TypeError", "A value has the wrong type for the operation. Check argument types and counts at the call site."},
	{"KeyError", "A mapping lookup used a missing key. Check the key or use a lookup with a default."},
	{"IndexError", "A sequence index is out of range. Check loop bounds and empty sequences."},
	{"undefined:", "The identifier is not declared in scope. Check the spelling, the package qualifier, and whether it is exported."},
	{"imported and not used", "Remove the unused import or use the package."},
	{"nil pointer dereference", "A nil pointer was dereferenced. Check constructor results and error returns before use."},
	{"index out of range", "A slice index is out of range. Check lengths before indexing."},
	{"deadlock", "All goroutines are blocked. Check channel sends without receivers and lock ordering."},
	{"connection refused", "The remote service is not reachable. Check that it is running and the address is correct."},
}

// Remedy is the outcome of a single remediation attempt.
type Remedy struct {
	Text     string
	Resolved bool
}

// Remediator proposes a remedy for a problem. attempt is 1-based.
type Remediator interface {
	Remediate(ctx context.Context, problem string, attempt int) (Remedy, error)
}

// RemediatorFunc adapts a function to the Remediator interface.
type RemediatorFunc func(ctx context.Context, problem string, attempt int) (Remedy, error)

// Remediate implements Remediator.
func (f RemediatorFunc) Remediate(ctx context.Context, problem string, attempt int) (Remedy, error) {
	return f(ctx, problem, attempt)
}

// CatalogRemediator looks problems up in a static table of fixes.
type CatalogRemediator struct {
	fixes []Fix
}

// NewCatalogRemediator creates a remediator over fixes, or DefaultCatalog when none are given.
func NewCatalogRemediator(fixes ...Fix) *CatalogRemediator {
	if len(fixes) == 0 {
		fixes = DefaultCatalog
	}
	return &CatalogRemediator{fixes: append([]Fix(nil), fixes...)}
}

// Remediate returns the advice of the first fix whose keyword occurs in the
// problem text (case-insensitive). A miss is reported as unresolved.
func (c *CatalogRemediator) Remediate(_ context.Context, problem string, _ int) (Remedy, error) {
	if fix, ok := c.Lookup(problem); ok {
		return Remedy{Text: fix.Advice, Resolved: true}, nil
	}
	return Remedy{}, nil
}

// Lookup returns the first matching fix.
func (c *CatalogRemediator) Lookup(problem string) (Fix, bool) {
	lower := strings.ToLower(problem)
	for _, fix := range c.fixes {
		if fix.Keyword != "" && strings.Contains(lower, strings.ToLower(fix.Keyword)) {
			return fix, true
		}
	}
	return Fix{}, false
}

// Fixes returns a copy of the catalog in lookup order.
func (c *CatalogRemediator) Fixes() []Fix { return append([]Fix(nil), c.fixes...) }
