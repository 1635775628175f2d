package task

import (
	"context"
	"errors"
	"os/exec"
	"testing"

	"github.com/hupe1980/taskmesh/core"
	"github.com/hupe1980/taskmesh/debugger"
	"github.com/hupe1980/taskmesh/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, s Set, name, input string) (string, error) {
	t.Helper()
	fn, ok := s.Lookup(name)
	require.True(t, ok, name)
	return fn(context.Background(), input)
}

func TestBuiltins_Names(t *testing.T) {
	s := Builtins()
	assert.Equal(t, []string{
		Debug, FetchData, Finance, Generic, HR, Journal, Marketing, Operations, ReviewCode, Strategy,
	}, s.Names())
}

func TestBuiltins_ManagementBranches(t *testing.T) {
	s := Builtins()
	cases := []struct {
		name, input, want string
	}{
		{Finance, "Q3 Budget", "FinanceManager: Processing budget report for Q3 Budget"},
		{Finance, "expense claims", "FinanceManager: Handling expense reports for expense claims"},
		{Finance, "taxes", "FinanceManager: Handling financial task: taxes"},
		{HR, "recruit two engineers", "HRManager: Recruiting employees for recruit two engineers"},
		{HR, "run payroll", "HRManager: Processing payroll for run payroll"},
		{HR, "Employee Relations issue", "HRManager: Managing employee relations for Employee Relations issue"},
		{HR, "onboarding", "HRManager: Handling HR task: onboarding"},
		{Operations, "logistics review", "OperationsManager: Overseeing logistics for logistics review"},
		{Operations, "supply chain delay", "OperationsManager: Managing supply chain for supply chain delay"},
		{Operations, "project coordination sync", "OperationsManager: Coordinating project: project coordination sync"},
		{Operations, "office move", "OperationsManager: Handling operations task: office move"},
		{Marketing, "spring campaign", "MarketingManager: Launching campaign for spring campaign"},
		{Marketing, "social media plan", "MarketingManager: Managing social media for social media plan"},
		{Marketing, "brand strategy offsite", "MarketingManager: Developing brand strategy for brand strategy offsite"},
		{Marketing, "newsletter", "MarketingManager: Handling marketing task: newsletter"},
		{FetchData, "AAPL 1d", "Fetching financial data with parameters: AAPL 1d"},
		{Strategy, "mean reversion", "Generating trading signals based on strategy: mean reversion"},
		{Generic, "whatever", "Handling general task: whatever"},
	}
	for _, tc := range cases {
		out, err := run(t, s, tc.name, tc.input)
		require.NoError(t, err)
		assert.Equal(t, tc.want, out)
	}
}

func TestBuiltins_JournalWithoutModel(t *testing.T) {
	out, err := run(t, Builtins(), Journal, "shipped the router")
	require.NoError(t, err)
	assert.Equal(t, "Writing a journal entry: shipped the router", out)
}

func TestBuiltins_JournalWithModel(t *testing.T) {
	m := model.NewMockModel("mock", "mock")
	m.AddResponse("shipped the router", "Today we shipped the router.")

	out, err := run(t, Builtins(func(o *Options) { o.Model = m }), Journal, "shipped the router")
	require.NoError(t, err)
	assert.Equal(t, "Today we shipped the router.", out)

	calls := m.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, JournalInstructions, calls[0].Instructions)
	assert.EqualValues(t, 150, calls[0].MaxTokens)
}

func TestBuiltins_JournalModelFailureIsExternal(t *testing.T) {
	m := model.NewMockModel("mock", "mock")
	m.FailWith(errors.New("rate limited"))

	_, err := run(t, Builtins(func(o *Options) { o.Model = m }), Journal, "x")
	require.Error(t, err)
	assert.Equal(t, core.FailureExternal, core.KindOf(err))
}

func TestBuiltins_DebugUsesResolver(t *testing.T) {
	r := debugger.New(func(o *debugger.Options) {
		o.Remediator = debugger.NewCatalogRemediator(debugger.Fix{Keyword: "boom", Advice: "defuse"})
	})
	out, err := run(t, Builtins(func(o *Options) { o.Resolver = r }), Debug, "debug the boom")
	require.NoError(t, err)
	assert.Equal(t, "Error fixed on attempt 1: defuse", out)
}

func TestBuiltins_ReviewCode(t *testing.T) {
	if _, err := exec.LookPath("echo"); err != nil {
		t.Skip("echo not available")
	}
	s := Builtins(func(o *Options) { o.LintCommand = []string{"echo", "linted"} })
	out, err := run(t, s, ReviewCode, "  ./pkg  ")
	require.NoError(t, err)
	assert.Equal(t, "linted ./pkg\n", out)
}

func TestBuiltins_ReviewCodeMissingBinary(t *testing.T) {
	s := Builtins(func(o *Options) { o.LintCommand = []string{"definitely-not-a-linter-binary"} })
	_, err := run(t, s, ReviewCode, ".")
	require.Error(t, err)
	assert.Equal(t, core.FailureImport, core.KindOf(err))
}

func TestBuiltins_ReviewCodeWithoutCommand(t *testing.T) {
	s := Builtins(func(o *Options) { o.LintCommand = nil })
	_, err := run(t, s, ReviewCode, ".")
	assert.Equal(t, core.FailureNameResolution, core.KindOf(err))
}

func TestSet_WithAndMerge(t *testing.T) {
	base := Set{"a": func(context.Context, string) (string, error) { return "a", nil }}
	extended := base.With("b", func(context.Context, string) (string, error) { return "b", nil })

	_, ok := base.Lookup("b")
	assert.False(t, ok, "With must not mutate the receiver")
	_, ok = extended.Lookup("b")
	assert.True(t, ok)

	merged := base.Merge(Set{"a": func(context.Context, string) (string, error) { return "override", nil }})
	out, err := merged["a"](context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "override", out)

	_, ok = Set{"nil": nil}.Lookup("nil")
	assert.False(t, ok)
}
