// Package factory manufactures agents from declarative descriptors.
//
// Descriptor task_function names are resolved against an explicit task.Set
// when the factory is built; an unknown name fails construction instead of
// surfacing later as a silent miss.
package factory

import (
	"errors"
	"fmt"

	"github.com/hupe1980/taskmesh/core"
	"github.com/hupe1980/taskmesh/descriptor"
	"github.com/hupe1980/taskmesh/logging"
	"github.com/hupe1980/taskmesh/task"
)

// ErrUnknownTaskFunction is returned when a descriptor references a task
// function that is not in the task set.
var ErrUnknownTaskFunction = errors.New("factory: unknown task function")

// Options configures a Factory.
type Options struct {
	// Logger receives miss diagnostics. Defaults to a no-op logger.
	Logger logging.Logger
}

// entry is a descriptor with its task function already resolved.
type entry struct {
	desc descriptor.Descriptor
	task core.TaskFunc
}

// Factory creates agents on demand. It holds a snapshot of the descriptors
// taken at construction and is safe for concurrent use.
type Factory struct {
	entries []entry
	logger  logging.Logger
}

// New builds a factory over the descriptors in set, resolving each
// task_function in tasks. A nil set yields a factory that never matches.
func New(set *descriptor.Set, tasks task.Set, optFns ...func(o *Options)) (*Factory, error) {
	opts := Options{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}

	f := &Factory{logger: logging.Scoped(opts.Logger, "factory")}
	if set == nil {
		return f, nil
	}

	for _, d := range set.Descriptors() {
		fn, ok := tasks.Lookup(d.TaskFunction)
		if !ok {
			return nil, fmt.Errorf("%w: descriptor %q references %q", ErrUnknownTaskFunction, d.Name, d.TaskFunction)
		}
		f.entries = append(f.entries, entry{desc: d, task: fn})
	}
	return f, nil
}

// Create returns a new agent built from the first descriptor, in file order,
// with a keyword containing label. It never registers the agent anywhere.
func (f *Factory) Create(label string) (*core.Agent, bool) {
	for _, e := range f.entries {
		if !e.desc.Keywords.Match(label) {
			continue
		}
		f.logger.Debug("Creating agent from descriptor", "label", label, "agent", e.desc.Name, "task_function", e.desc.TaskFunction)
		return core.NewAgent(e.desc.Name, e.desc.Role, func(o *core.AgentOptions) {
			o.Personality = e.desc.Personality
			o.Task = e.task
		}), true
	}

	f.logger.Warn("No agent descriptor found", "label", label)
	return nil, false
}

// Len returns the number of descriptors the factory can build from.
func (f *Factory) Len() int { return len(f.entries) }
