package taskmesh

import (
	"bytes"
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/hupe1980/taskmesh/audit"
	"github.com/hupe1980/taskmesh/config"
	"github.com/hupe1980/taskmesh/debugger"
	"github.com/hupe1980/taskmesh/descriptor"
	"github.com/hupe1980/taskmesh/factory"
	"github.com/hupe1980/taskmesh/internal/testutil"
	"github.com/hupe1980/taskmesh/model"
	"github.com/hupe1980/taskmesh/router"
	"github.com/hupe1980/taskmesh/task"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const agentsYAML = `agents:
  - name: Journal
    task_keyword: journal
    role: Journal
    personality: Reflective and thorough.
    task_function: journal_task_function
  - name: Finance Manager
    task_keyword: [finance, budget]
    role: Finance management
    personality: Careful with numbers.
    task_function: finance_management_function
`

func TestNew_Defaults(t *testing.T) {
	m, err := New()
	require.NoError(t, err)
	assert.Equal(t, 0, m.Registry().Len())

	res := m.Dispatch(context.Background(), "write a journal")
	assert.Equal(t, router.OutcomeUnhandled, res.Outcome)
}

func TestNew_UnknownTaskFunctionFails(t *testing.T) {
	set := testutil.NewDescriptorSet(t, testutil.NewDescriptor("Ghost", "ghost", "nope_function"))
	_, err := New(func(o *Options) { o.Descriptors = set })
	assert.ErrorIs(t, err, factory.ErrUnknownTaskFunction)
}

func TestRoute_BuiltinTasks(t *testing.T) {
	set := testutil.NewDescriptorSet(t,
		testutil.NewDescriptor("Journal", "journal", task.Journal),
		testutil.NewDescriptor("Finance Manager", "finance", task.Finance),
	)
	sink := audit.NewMemorySink()
	m, err := New(func(o *Options) {
		o.Descriptors = set
		o.Sink = sink
	})
	require.NoError(t, err)

	ctx := context.Background()
	assert.Equal(t, "Writing a journal entry: journal today", m.Route(ctx, "journal today"))
	assert.Equal(t, "FinanceManager: Processing budget report for finance budget Q3", m.Route(ctx, "finance budget Q3"))
	assert.Equal(t, 2, m.Registry().Len())
	assert.Len(t, sink.Entries(), 2)
}

func TestRoute_JournalUsesModel(t *testing.T) {
	mock := model.NewMockModel("mock", "mock")
	mock.AddResponse("journal the release", "Released v1.")
	set := testutil.NewDescriptorSet(t, testutil.NewDescriptor("Journal", "journal", task.Journal))

	m, err := New(func(o *Options) {
		o.Descriptors = set
		o.Model = mock
	})
	require.NoError(t, err)
	assert.Equal(t, "Released v1.", m.Route(context.Background(), "journal the release"))
}

func TestWithDebugger_HandlesDebugCategory(t *testing.T) {
	m, err := New(WithDebugger())
	require.NoError(t, err)

	require.Equal(t, 1, m.Registry().Len())
	res := m.Dispatch(context.Background(), "debug NameError: x is not defined")
	assert.Equal(t, debugger.AgentName, res.Agent)
	assert.True(t, strings.HasPrefix(res.Output, "Error fixed on attempt 1: "), res.Output)
	assert.Equal(t, []string{
		"My name is Debugger. I am responsible for Debugging. You are a debugging expert that can handle traceback errors.",
	}, m.Introductions())
}

func TestWithAgents_SeedsInOrder(t *testing.T) {
	a := testutil.NewAgentBuilder("A", "marketing").Returns("a").Build()
	b := testutil.NewAgentBuilder("B", "marketing").Returns("b").Build()

	m, err := New(WithAgents(a, b))
	require.NoError(t, err)
	assert.Equal(t, "a", m.Route(context.Background(), "marketing push"))
}

func TestResolve_NameErrorFixedOnFirstAttempt(t *testing.T) {
	m, err := New()
	require.NoError(t, err)

	res := m.Resolve(context.Background(), "NameError: x is not defined")
	assert.True(t, res.Resolved)
	assert.Equal(t, 1, res.Attempts)
	assert.Equal(t, debugger.DefaultCatalog[0].Advice, res.Remedy)
}

func TestResolve_EscalatesAfterCeiling(t *testing.T) {
	m, err := New(func(o *Options) { o.DebuggerMaxAttempts = 3 })
	require.NoError(t, err)

	res := m.Resolve(context.Background(), "the printer is on fire")
	assert.False(t, res.Resolved)
	assert.Equal(t, 3, res.Attempts)
	assert.Contains(t, res.String(), "Unable to fix the error after 3 attempts.")
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestNewRuntime(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Defaults()
	cfg.Descriptors = writeFile(t, dir, "agents.yaml", agentsYAML)
	cfg.Audit.File = filepath.Join(dir, "logs", "audit.log")
	cfg.Audit.SQLite = filepath.Join(dir, "audit.db")

	var logs bytes.Buffer
	rt, err := NewRuntime(cfg, &logs)
	require.NoError(t, err)
	t.Cleanup(func() { rt.Close() })

	ctx := context.Background()
	assert.Equal(t, "Writing a journal entry: journal standup", rt.Route(ctx, "journal standup"))
	assert.Contains(t, rt.Route(ctx, "debug KeyError: 'id'"), "Error fixed on attempt 1")

	history, err := rt.History(ctx, 10)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, debugger.AgentName, history[0].Agent)
	assert.Equal(t, "Journal", history[1].Agent)

	data, err := os.ReadFile(cfg.Audit.File)
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(string(data), "\n"))
	assert.Contains(t, logs.String(), "Runtime ready")
	assert.Contains(t, logs.String(), "operation=runtime_setup")

	require.NoError(t, rt.Close())
}

func TestNewRuntime_MissingDescriptorFile(t *testing.T) {
	cfg := config.Defaults()
	cfg.Descriptors = filepath.Join(t.TempDir(), "absent.yaml")
	cfg.Audit.File = ""

	_, err := NewRuntime(cfg, &bytes.Buffer{})
	require.Error(t, err)
	assert.ErrorIs(t, err, fs.ErrNotExist)
}

func TestNewRuntime_HistoryWithoutSQLite(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Defaults()
	cfg.Descriptors = writeFile(t, dir, "agents.yaml", agentsYAML)
	cfg.Audit.File = ""

	rt, err := NewRuntime(cfg, &bytes.Buffer{})
	require.NoError(t, err)
	defer rt.Close()

	_, err = rt.History(context.Background(), 1)
	assert.ErrorIs(t, err, ErrNoHistory)
}

func TestNewModel(t *testing.T) {
	m, err := NewModel(config.ModelConfig{}, nil)
	require.NoError(t, err)
	assert.Nil(t, m)

	m, err = NewModel(config.ModelConfig{Provider: config.ProviderOpenAI, Name: "gpt-4o-mini", APIKey: "test"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "openai", m.Info().Provider)

	m, err = NewModel(config.ModelConfig{Provider: config.ProviderAnthropic, Name: "claude-3-5-haiku-latest", APIKey: "test"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "anthropic", m.Info().Provider)

	_, err = NewModel(config.ModelConfig{Provider: "other"}, nil)
	assert.ErrorIs(t, err, config.ErrInvalid)
}

func TestNewModel_Breaker(t *testing.T) {
	m, err := NewModel(config.ModelConfig{
		Provider:           config.ProviderOpenAI,
		Name:               "gpt-4o-mini",
		APIKey:             "test",
		BreakerMaxFailures: 3,
		BreakerTimeout:     time.Second,
	}, nil)
	require.NoError(t, err)

	_, ok := m.(*model.BreakerModel)
	assert.True(t, ok)
	assert.Equal(t, "openai", m.Info().Provider)
}

func TestPreload_RoleDiffersFromKeyword(t *testing.T) {
	set := testutil.NewDescriptorSet(t,
		testutil.NewDescriptorBuilder("Financial Advisor").Keywords("finance").Role("Financial Advisor").Task(task.Finance).Build(),
	)
	m, err := New(func(o *Options) { o.Descriptors = set })
	require.NoError(t, err)

	assert.Equal(t, 1, m.Preload())
	assert.Equal(t, 0, m.Preload())
	assert.Equal(t, 1, m.Registry().Len())

	res := m.Dispatch(context.Background(), "finance review")
	assert.False(t, res.Created)
	assert.Equal(t, "Financial Advisor", res.Agent)
	assert.Equal(t, 1, m.Registry().Len())
}

func TestSampleAgentsConfig_RoutesAreIdempotent(t *testing.T) {
	set, err := descriptor.Load(filepath.Join("configs", "agents.yaml"))
	require.NoError(t, err)
	m, err := New(func(o *Options) { o.Descriptors = set })
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		res := m.Dispatch(context.Background(), "water the plants")
		assert.Equal(t, "Generalist", res.Agent)
		assert.Equal(t, i == 0, res.Created)
	}
	assert.Equal(t, 1, m.Registry().Len())

	created := m.Preload()
	assert.Equal(t, set.Len()-1, created)
	assert.Equal(t, 0, m.Preload())
	assert.Equal(t, set.Len(), m.Registry().Len())
}

func TestPreload(t *testing.T) {
	set := testutil.NewDescriptorSet(t,
		testutil.NewDescriptor("Journal", "journal", task.Journal),
		testutil.NewDescriptor("Journal Copy", "journal", task.Journal),
		testutil.NewDescriptor("Marketing Manager", "marketing", task.Marketing),
	)
	m, err := New(func(o *Options) { o.Descriptors = set })
	require.NoError(t, err)

	assert.Equal(t, 2, m.Preload())
	assert.Equal(t, 0, m.Preload())
	assert.Equal(t, []string{
		"My name is Journal. I am responsible for journal. Test personality.",
		"My name is Marketing Manager. I am responsible for marketing. Test personality.",
	}, m.Introductions())
}
