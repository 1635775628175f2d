package router

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/hupe1980/taskmesh/audit"
	"github.com/hupe1980/taskmesh/core"
	"github.com/hupe1980/taskmesh/descriptor"
	"github.com/hupe1980/taskmesh/factory"
	"github.com/hupe1980/taskmesh/internal/testutil"
	"github.com/hupe1980/taskmesh/logging"
	"github.com/hupe1980/taskmesh/model"
	"github.com/hupe1980/taskmesh/registry"
	"github.com/hupe1980/taskmesh/task"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFactory(t *testing.T, tasks task.Set, ds ...descriptor.Descriptor) *factory.Factory {
	t.Helper()
	set := testutil.NewDescriptorSet(t, ds...)
	f, err := factory.New(set, tasks)
	require.NoError(t, err)
	return f
}

type recordingRecorder struct {
	mu       sync.Mutex
	routes   []string
	sizes    []int
	resolves int
}

func (r *recordingRecorder) ObserveRoute(category, outcome string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.routes = append(r.routes, category+"/"+outcome)
}

func (r *recordingRecorder) SetRegistrySize(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sizes = append(r.sizes, n)
}

func (r *recordingRecorder) ObserveResolve(string, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resolves++
}

func TestRoute_JournalDescriptorCreatesOneAgent(t *testing.T) {
	sink := audit.NewMemorySink()
	reg := registry.New()
	f := newFactory(t, task.Builtins(), testutil.NewDescriptorBuilder("Journal").
		Keywords("journal").Role("Journal").Task(task.Journal).Build())
	r := New(reg, f, func(o *Options) { o.Sink = sink })

	out := r.Route(context.Background(), "Write a journal entry about today")

	assert.Equal(t, "Writing a journal entry: Write a journal entry about today", out)
	require.Equal(t, 1, reg.Len())
	assert.Equal(t, "Journal", reg.Agents()[0].Name())

	entries := sink.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, "Journal", entries[0].Agent)
	assert.Equal(t, "Write a journal entry about today", entries[0].Task)
	assert.Equal(t, out, entries[0].Result)
	assert.Equal(t, "router", entries[0].Component)
}

func TestRoute_UnrelatedTextLeavesRegistryEmpty(t *testing.T) {
	sink := audit.NewMemorySink()
	reg := registry.New()
	f := newFactory(t, task.Builtins(), testutil.NewDescriptor("Journal", "journal", task.Journal))
	r := New(reg, f, func(o *Options) { o.Sink = sink })

	res := r.Dispatch(context.Background(), "Water the plants")

	assert.Equal(t, OutcomeUnhandled, res.Outcome)
	assert.Equal(t, FallbackLabel, res.Category)
	assert.Equal(t, `Task 'Water the plants' could not be handled: no agent available for category "generic"`, res.Output)
	assert.Empty(t, res.Agent)
	assert.Equal(t, 0, reg.Len())
	assert.Empty(t, sink.Entries())
}

func TestRoute_IdempotentRegistryGrowth(t *testing.T) {
	reg := registry.New()
	f := newFactory(t, task.Builtins(), testutil.NewDescriptor("Journal", "journal", task.Journal))
	r := New(reg, f)

	first := r.Dispatch(context.Background(), "journal one")
	second := r.Dispatch(context.Background(), "journal two")

	assert.True(t, first.Created)
	assert.False(t, second.Created)
	assert.Equal(t, 1, reg.Len())
}

func TestRoute_IdempotentWhenRoleDiffersFromLabel(t *testing.T) {
	reg := registry.New()
	f := newFactory(t, task.Builtins(),
		testutil.NewDescriptorBuilder("Financial Advisor").Keywords("finance").Role("Financial Advisor").Task(task.Finance).Build(),
		testutil.NewDescriptorBuilder("Generalist").Keywords("generic").Role("General tasks").Task(task.Generic).Build(),
	)
	r := New(reg, f)

	for i := 0; i < 3; i++ {
		res := r.Dispatch(context.Background(), "water the plants")
		assert.Equal(t, OutcomeHandled, res.Outcome)
		assert.Equal(t, "Generalist", res.Agent)
		assert.Equal(t, i == 0, res.Created)
	}
	assert.Equal(t, 1, reg.Len())

	for i := 0; i < 3; i++ {
		res := r.Dispatch(context.Background(), "finance report")
		assert.Equal(t, "Financial Advisor", res.Agent)
		assert.Equal(t, i == 0, res.Created)
	}
	assert.Equal(t, 2, reg.Len())
}

func TestRoute_NilCreatorUsesSeededAgents(t *testing.T) {
	reg := registry.New(testutil.NewAgentBuilder("Helper", "generic helper").Returns("done").Build())
	r := New(reg, nil)

	res := r.Dispatch(context.Background(), "anything")
	assert.Equal(t, OutcomeHandled, res.Outcome)
	assert.Equal(t, "done", res.Output)
	assert.Equal(t, "Helper", res.Agent)

	res = r.Dispatch(context.Background(), "debug this")
	assert.Equal(t, OutcomeUnhandled, res.Outcome)
	assert.Equal(t, 1, reg.Len())
}

func TestRoute_AgentWithoutTaskReturnsSentinel(t *testing.T) {
	reg := registry.New(testutil.NewAgentBuilder("Idle", "marketing").Build())
	r := New(reg, nil)

	res := r.Dispatch(context.Background(), "marketing plan")
	assert.Equal(t, OutcomeHandled, res.Outcome)
	assert.Equal(t, "Idle has no assigned function.", res.Output)
}

func TestRoute_SelfHealByFailureKind(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		prefix string
	}{
		{"name resolution", core.NewTaskError(core.FailureNameResolution, "fn", "undefined: helper"), "Self-healing: Worker could not resolve a name"},
		{"import", core.NewTaskError(core.FailureImport, "fn", "linter missing"), "Self-healing: Worker could not load a required component"},
		{"external", core.NewTaskError(core.FailureExternal, "fn", "timeout"), "Encountered an unhandled error"},
		{"plain error", errors.New("boom"), "Encountered an unhandled error"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			sink := audit.NewMemorySink()
			logger := testutil.NewRecordingLogger()
			reg := registry.New(testutil.NewAgentBuilder("Worker", "finance").Fails(tc.err).Build())
			r := New(reg, nil, func(o *Options) {
				o.Sink = sink
				o.Logger = logger
			})

			res := r.Dispatch(context.Background(), "finance report")

			assert.Equal(t, OutcomeFailed, res.Outcome)
			assert.ErrorIs(t, res.Err, tc.err)
			assert.True(t, strings.HasPrefix(res.Output, tc.prefix), res.Output)
			assert.Contains(t, res.Output, "finance report")

			entries := sink.Entries()
			require.Len(t, entries, 1, "failures are audited too")
			assert.Equal(t, res.Output, entries[0].Result)
			assert.Contains(t, logger.Messages("ERROR"), "Agent task failed")
		})
	}
}

func TestRoute_PanicIsRecovered(t *testing.T) {
	reg := registry.New(testutil.NewAgentBuilder("Fragile", "operations").Task(func(context.Context, string) (string, error) {
		panic("nil map")
	}).Build())
	r := New(reg, nil)

	res := r.Dispatch(context.Background(), "operations review")
	assert.Equal(t, OutcomeFailed, res.Outcome)
	assert.Equal(t, core.FailureUnknown, core.KindOf(res.Err))
	assert.Contains(t, res.Output, "panic: nil map")
}

func TestRoute_PanicLogsStack(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.NewLogger(&logging.LoggerConfig{Level: logging.LogLevelDebug, Format: "json", Output: &buf})
	reg := registry.New(testutil.NewAgentBuilder("Fragile", "operations").Task(func(context.Context, string) (string, error) {
		panic("nil map")
	}).Build())
	r := New(reg, nil, func(o *Options) { o.Logger = logger })

	res := r.Dispatch(context.Background(), "operations review")
	require.Equal(t, OutcomeFailed, res.Outcome)

	out := buf.String()
	assert.Contains(t, out, "Recovered panic in task function")
	assert.Contains(t, out, `"stack_trace"`)
	assert.Contains(t, out, `"agent":"Fragile"`)
}

type failingSink struct{}

func (failingSink) Append(context.Context, audit.Entry) error { return errors.New("disk full") }

func TestRoute_AuditFailureDoesNotChangeResult(t *testing.T) {
	logger := testutil.NewRecordingLogger()
	reg := registry.New(testutil.NewAgentBuilder("HR", "hr").Returns("hired").Build())
	r := New(reg, nil, func(o *Options) {
		o.Sink = failingSink{}
		o.Logger = logger
	})

	assert.Equal(t, "hired", r.Route(context.Background(), "recruit a designer"))
	assert.Contains(t, logger.Messages("ERROR"), "Audit append failed")
}

func TestRoute_RecordsMetrics(t *testing.T) {
	rec := &recordingRecorder{}
	f := newFactory(t, task.Builtins(), testutil.NewDescriptor("Finance", "finance", task.Finance))
	r := New(registry.New(), f, func(o *Options) { o.Recorder = rec })

	r.Route(context.Background(), "finance budget")
	r.Route(context.Background(), "something else")

	assert.Equal(t, []string{"finance/handled", "generic/unhandled"}, rec.routes)
	assert.Equal(t, []int{0, 1}, rec.sizes)
}

func TestIntroductions(t *testing.T) {
	reg := registry.New(
		testutil.NewAgentBuilder("Debugger", "Debugging").Personality("Methodical.").Build(),
		testutil.NewAgentBuilder("Journal", "journal").Personality("Reflective.").Build(),
	)
	r := New(reg, nil)

	assert.Equal(t, []string{
		"My name is Debugger. I am responsible for Debugging. Methodical.",
		"My name is Journal. I am responsible for journal. Reflective.",
	}, r.Introductions())
}

func TestDispatch_ConcurrentSameCategoryCreatesOneAgent(t *testing.T) {
	sink := audit.NewMemorySink()
	reg := registry.New()
	f := newFactory(t, task.Builtins(), testutil.NewDescriptor("Marketing", "marketing", task.Marketing))
	r := New(reg, f, func(o *Options) { o.Sink = sink })

	const workers = 40
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		created int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res := r.Dispatch(context.Background(), "marketing campaign")
			assert.Equal(t, OutcomeHandled, res.Outcome)
			if res.Created {
				mu.Lock()
				created++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, created)
	assert.Equal(t, 1, reg.Len())
	assert.Len(t, sink.Entries(), workers)
}

func TestDispatch_ConcurrentModelBackedJournal(t *testing.T) {
	mock := model.NewMockModel("mock", "mock")
	mock.AddResponse("journal standup", "Standup went well.")
	reg := registry.New()
	f := newFactory(t, task.Builtins(func(o *task.Options) { o.Model = mock }),
		testutil.NewDescriptor("Journal", "journal", task.Journal))
	r := New(reg, f)

	const workers = 16
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.Equal(t, "Standup went well.", r.Route(context.Background(), "journal standup"))
		}()
	}
	wg.Wait()

	assert.Len(t, mock.Calls(), workers)
	assert.Equal(t, 1, reg.Len())
}
