package testutil

import (
	"testing"

	"github.com/hupe1980/taskmesh/descriptor"
)

// DescriptorBuilder provides a fluent helper for constructing descriptors.
// Example:
//
//	d := NewDescriptorBuilder("Journal").Keywords("journal").Task("journal_task_function").Build()
//
// Unset fields get defaults: the role is the first keyword and the
// personality is "Test personality.".
type DescriptorBuilder struct {
	d descriptor.Descriptor
}

// NewDescriptorBuilder creates a builder for a descriptor with the given name.
func NewDescriptorBuilder(name string) *DescriptorBuilder {
	return &DescriptorBuilder{d: descriptor.Descriptor{Name: name}}
}

// Keywords sets the task keywords (chainable).
func (b *DescriptorBuilder) Keywords(kw ...string) *DescriptorBuilder {
	b.d.Keywords = append(descriptor.Keywords(nil), kw...)
	return b
}

// Role sets the role (chainable).
func (b *DescriptorBuilder) Role(r string) *DescriptorBuilder { b.d.Role = r; return b }

// Personality sets the personality (chainable).
func (b *DescriptorBuilder) Personality(p string) *DescriptorBuilder { b.d.Personality = p; return b }

// Task sets the task function name (chainable).
func (b *DescriptorBuilder) Task(name string) *DescriptorBuilder { b.d.TaskFunction = name; return b }

// Attr sets a free-form attribute (chainable).
func (b *DescriptorBuilder) Attr(key string, val any) *DescriptorBuilder {
	if b.d.Attributes == nil {
		b.d.Attributes = map[string]any{}
	}
	b.d.Attributes[key] = val
	return b
}

// Build returns the descriptor with defaults applied.
func (b *DescriptorBuilder) Build() descriptor.Descriptor {
	d := b.d.Clone()
	if d.Role == "" && len(d.Keywords) > 0 {
		d.Role = d.Keywords[0]
	}
	if d.Personality == "" {
		d.Personality = "Test personality."
	}
	return d
}

// NewDescriptor is shorthand for a single-keyword descriptor whose role
// equals the keyword.
func NewDescriptor(name, keyword, taskFunction string) descriptor.Descriptor {
	return NewDescriptorBuilder(name).Keywords(keyword).Task(taskFunction).Build()
}

// NewDescriptorSet builds a validated set and fails the test on error.
func NewDescriptorSet(tb testing.TB, ds ...descriptor.Descriptor) *descriptor.Set {
	tb.Helper()
	set, err := descriptor.NewSet(ds...)
	if err != nil {
		tb.Fatalf("descriptor set: %v", err)
	}
	return set
}
