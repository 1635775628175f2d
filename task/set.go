// Package task provides the explicit name to function table the factory
// resolves descriptor "task_function" references against, plus the built-in
// task functions.
//
// The table is plain data built at startup: there is no reflection and no
// lookup by method name, so a descriptor naming a function that does not
// exist is detected when the factory is constructed.
package task

import (
	"sort"

	"github.com/hupe1980/taskmesh/core"
)

// Set maps task function names to implementations.
type Set map[string]core.TaskFunc

// Lookup returns the function registered under name.
func (s Set) Lookup(name string) (core.TaskFunc, bool) {
	fn, ok := s[name]
	return fn, ok && fn != nil
}

// Names returns the registered names in sorted order.
func (s Set) Names() []string {
	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// With returns a copy of the set with fn registered under name.
func (s Set) With(name string, fn core.TaskFunc) Set {
	out := make(Set, len(s)+1)
	for k, v := range s {
		out[k] = v
	}
	out[name] = fn
	return out
}

// Merge returns a copy of s overlaid with other. Entries of other win.
func (s Set) Merge(other Set) Set {
	out := make(Set, len(s)+len(other))
	for k, v := range s {
		out[k] = v
	}
	for k, v := range other {
		out[k] = v
	}
	return out
}
