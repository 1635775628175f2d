package task

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/hupe1980/taskmesh/core"
	"github.com/hupe1980/taskmesh/debugger"
	"github.com/hupe1980/taskmesh/logging"
	"github.com/hupe1980/taskmesh/model"
)

// Names of the built-in task functions, as referenced by descriptor files.
const (
	Debug      = "debug_task_function"
	Journal    = "journal_task_function"
	FetchData  = "fetch_data_function"
	Strategy   = "strategy_task_function"
	Finance    = "finance_management_function"
	HR         = "hr_management_function"
	Operations = "operations_management_function"
	Marketing  = "marketing_management_function"
	ReviewCode = "review_code_function"
	Generic    = "generic_task_function"
)

// JournalInstructions is the system prompt used for model backed journal entries.
const JournalInstructions = "You are an assistant that helps generate project journal entries."

// Options configures the built-in task functions.
type Options struct {
	// Model backs the journal task. Nil falls back to a canned response.
	Model model.Model

	// JournalMaxTokens caps the generated journal entry.
	JournalMaxTokens int64

	// Resolver backs the debug task. Nil uses a resolver with the default catalog.
	Resolver *debugger.Resolver

	// LintCommand is the command the code review task runs; the project path
	// taken from the task input is appended as last argument.
	LintCommand []string

	// Logger receives task level diagnostics. Defaults to a no-op logger.
	Logger logging.Logger
}

// Builtins returns the built-in task function table.
func Builtins(optFns ...func(o *Options)) Set {
	opts := Options{
		JournalMaxTokens: 150,
		LintCommand:      []string{"go", "vet"},
		Logger:           logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Resolver == nil {
		opts.Resolver = debugger.New(func(o *debugger.Options) { o.Logger = opts.Logger })
	}

	b := &builtins{opts: opts, logger: logging.Scoped(opts.Logger, "task")}

	return Set{
		Debug:      b.debug,
		Journal:    b.journal,
		FetchData:  b.fetchData,
		Strategy:   b.strategy,
		Finance:    b.finance,
		HR:         b.hr,
		Operations: b.operations,
		Marketing:  b.marketing,
		ReviewCode: b.reviewCode,
		Generic:    b.generic,
	}
}

type builtins struct {
	opts   Options
	logger logging.Logger
}

func (b *builtins) debug(ctx context.Context, input string) (string, error) {
	return b.opts.Resolver.Resolve(ctx, input).String(), nil
}

func (b *builtins) journal(ctx context.Context, input string) (string, error) {
	if b.opts.Model == nil {
		return fmt.Sprintf("Writing a journal entry: %s", input), nil
	}

	text, err := model.Collect(ctx, b.opts.Model, model.Request{
		Instructions: JournalInstructions,
		Prompt:       input,
		MaxTokens:    b.opts.JournalMaxTokens,
	})
	if err != nil {
		b.logger.Error("Journal generation failed", "model", b.opts.Model.Info().Name, "error", err)
		return "", core.WrapTaskError(core.FailureExternal, Journal, err)
	}
	return text, nil
}

func (b *builtins) fetchData(_ context.Context, input string) (string, error) {
	return fmt.Sprintf("Fetching financial data with parameters: %s", input), nil
}

func (b *builtins) strategy(_ context.Context, input string) (string, error) {
	return fmt.Sprintf("Generating trading signals based on strategy: %s", input), nil
}

// branch is one keyword-specific answer of a management task.
type branch struct {
	keyword string
	log     string
	format  string
}

// answer picks the first branch whose keyword occurs in input, or the fallback.
func (b *builtins) answer(input string, branches []branch, fallback branch) string {
	lower := strings.ToLower(input)
	for _, br := range branches {
		if strings.Contains(lower, br.keyword) {
			b.logger.Info(br.log)
			return fmt.Sprintf(br.format, input)
		}
	}
	b.logger.Info(fallback.log)
	return fmt.Sprintf(fallback.format, input)
}

func (b *builtins) finance(_ context.Context, input string) (string, error) {
	return b.answer(input, []branch{
		{"budget", "Processing budget report", "FinanceManager: Processing budget report for %s"},
		{"expense", "Handling expense reports", "FinanceManager: Handling expense reports for %s"},
	}, branch{"", "Handling general financial task", "FinanceManager: Handling financial task: %s"}), nil
}

func (b *builtins) hr(_ context.Context, input string) (string, error) {
	return b.answer(input, []branch{
		{"recruit", "Recruiting new employees", "HRManager: Recruiting employees for %s"},
		{"payroll", "Processing payroll", "HRManager: Processing payroll for %s"},
		{"employee relations", "Managing employee relations", "HRManager: Managing employee relations for %s"},
	}, branch{"", "Handling general HR task", "HRManager: Handling HR task: %s"}), nil
}

func (b *builtins) operations(_ context.Context, input string) (string, error) {
	return b.answer(input, []branch{
		{"logistics", "Overseeing logistics operations", "OperationsManager: Overseeing logistics for %s"},
		{"supply chain", "Managing supply chain", "OperationsManager: Managing supply chain for %s"},
		{"project coordination", "Coordinating projects", "OperationsManager: Coordinating project: %s"},
	}, branch{"", "Handling general operations task", "OperationsManager: Handling operations task: %s"}), nil
}

func (b *builtins) marketing(_ context.Context, input string) (string, error) {
	return b.answer(input, []branch{
		{"campaign", "Launching marketing campaign", "MarketingManager: Launching campaign for %s"},
		{"social media", "Managing social media accounts", "MarketingManager: Managing social media for %s"},
		{"brand strategy", "Developing brand strategy", "MarketingManager: Developing brand strategy for %s"},
	}, branch{"", "Handling general marketing task", "MarketingManager: Handling marketing task: %s"}), nil
}

func (b *builtins) reviewCode(ctx context.Context, input string) (string, error) {
	if len(b.opts.LintCommand) == 0 {
		return "", core.NewTaskError(core.FailureNameResolution, ReviewCode, "no lint command configured")
	}

	path := strings.TrimSpace(input)
	args := append(append([]string(nil), b.opts.LintCommand[1:]...), path)
	b.logger.Info("Reviewing code", "path", path, "command", b.opts.LintCommand[0])

	out, err := exec.CommandContext(ctx, b.opts.LintCommand[0], args...).CombinedOutput()
	if err != nil {
		var exitErr *exec.ExitError
		switch {
		case errors.As(err, &exitErr):
			// Linters report findings through a non-zero exit status.
			return string(out), nil
		case errors.Is(err, exec.ErrNotFound):
			return "", core.WrapTaskError(core.FailureImport, ReviewCode, err)
		default:
			b.logger.Error("Error while reviewing code", "error", err)
			return "", core.WrapTaskError(core.FailureExternal, ReviewCode, err)
		}
	}
	return string(out), nil
}

func (b *builtins) generic(_ context.Context, input string) (string, error) {
	return fmt.Sprintf("Handling general task: %s", input), nil
}
