package descriptor

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Format identifies the serialization of a descriptor file.
type Format int

const (
	// FormatYAML is YAML (also accepts JSON, which is a subset).
	FormatYAML Format = iota
	// FormatJSON is strict JSON.
	FormatJSON
)

// FormatFromPath selects the format by file extension. Unknown extensions
// are treated as YAML.
func FormatFromPath(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return FormatJSON
	}
	return FormatYAML
}

// agentsKey is the top level key holding the descriptor list.
const agentsKey = "agents"

// Set is an ordered list of descriptors. File order is preserved and decides
// which descriptor wins when several match a label.
//
// A Set is not safe for concurrent mutation; the factory takes a snapshot at
// construction time.
type Set struct {
	items []Descriptor
}

// NewSet creates a set from descriptors, validating each one.
func NewSet(descriptors ...Descriptor) (*Set, error) {
	s := &Set{}
	for _, d := range descriptors {
		if err := s.Add(d); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Load reads and parses a descriptor file. Any I/O or schema problem is
// returned as an error; callers treat it as fatal.
func Load(path string) (*Set, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("descriptor: read %s: %w", path, err)
	}
	s, err := Parse(data, FormatFromPath(path))
	if err != nil {
		return nil, fmt.Errorf("descriptor: parse %s: %w", path, err)
	}
	return s, nil
}

// Parse decodes descriptor data in the given format.
func Parse(data []byte, format Format) (*Set, error) {
	doc := map[string]any{}
	switch format {
	case FormatJSON:
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, err
		}
	default:
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, err
		}
	}

	rawAgents, ok := doc[agentsKey]
	if !ok {
		return nil, fmt.Errorf("%w: top level %q list", ErrMissingField, agentsKey)
	}
	list, ok := rawAgents.([]any)
	if !ok && rawAgents != nil {
		return nil, fmt.Errorf("%w: %q must be a list, got %T", ErrInvalidField, agentsKey, rawAgents)
	}

	s := &Set{items: make([]Descriptor, 0, len(list))}
	for i, entry := range list {
		raw, ok := entry.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: entry %d must be a mapping, got %T", ErrInvalidField, i, entry)
		}
		d, err := fromMap(i, raw)
		if err != nil {
			return nil, err
		}
		s.items = append(s.items, d)
	}
	return s, nil
}

// Len returns the number of descriptors.
func (s *Set) Len() int { return len(s.items) }

// Descriptors returns a copy of the descriptors in file order.
func (s *Set) Descriptors() []Descriptor {
	out := make([]Descriptor, len(s.items))
	for i, d := range s.items {
		out[i] = d.Clone()
	}
	return out
}

// Match returns the first descriptor whose keywords contain label.
func (s *Set) Match(label string) (Descriptor, bool) {
	for _, d := range s.items {
		if d.Keywords.Match(label) {
			return d.Clone(), true
		}
	}
	return Descriptor{}, false
}

// Add appends a descriptor. Names must be unique within a set managed
// through Add; files loaded with duplicate names are accepted as-is.
func (s *Set) Add(d Descriptor) error {
	if err := d.Validate(); err != nil {
		return err
	}
	for _, existing := range s.items {
		if existing.Name == d.Name {
			return fmt.Errorf("%w: %s", ErrDuplicateName, d.Name)
		}
	}
	s.items = append(s.items, d.Clone())
	return nil
}

// Edit merges updates into the first descriptor matching keyword and returns
// the updated descriptor.
func (s *Set) Edit(keyword string, updates map[string]any) (Descriptor, error) {
	for i, d := range s.items {
		if !d.Keywords.Match(keyword) {
			continue
		}
		updated := d.Clone()
		if err := updated.applyUpdates(updates); err != nil {
			return Descriptor{}, err
		}
		if updated.Name != d.Name {
			for j, other := range s.items {
				if j != i && other.Name == updated.Name {
					return Descriptor{}, fmt.Errorf("%w: %s", ErrDuplicateName, updated.Name)
				}
			}
		}
		s.items[i] = updated
		return updated.Clone(), nil
	}
	return Descriptor{}, fmt.Errorf("%w: %q", ErrNotFound, keyword)
}

// Remove deletes every descriptor matching keyword and returns how many were removed.
func (s *Set) Remove(keyword string) (int, error) {
	kept := s.items[:0]
	removed := 0
	for _, d := range s.items {
		if d.Keywords.Match(keyword) {
			removed++
			continue
		}
		kept = append(kept, d)
	}
	s.items = kept
	if removed == 0 {
		return 0, fmt.Errorf("%w: %q", ErrNotFound, keyword)
	}
	return removed, nil
}

// Marshal encodes the set in the given format.
func (s *Set) Marshal(format Format) ([]byte, error) {
	entries := make([]map[string]any, len(s.items))
	for i, d := range s.items {
		entries[i] = d.toMap()
	}
	doc := map[string]any{agentsKey: entries}

	if format == FormatJSON {
		return json.MarshalIndent(doc, "", "  ")
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Save writes the set to path, selecting the format by extension.
func (s *Set) Save(path string) error {
	data, err := s.Marshal(FormatFromPath(path))
	if err != nil {
		return fmt.Errorf("descriptor: encode %s: %w", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("descriptor: write %s: %w", path, err)
	}
	return nil
}
