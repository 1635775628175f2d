package descriptor

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Required descriptor keys.
const (
	KeyName         = "name"
	KeyTaskKeyword  = "task_keyword"
	KeyRole         = "role"
	KeyPersonality  = "personality"
	KeyTaskFunction = "task_function"
)

// RequiredKeys lists the keys every descriptor entry must contain.
var RequiredKeys = []string{KeyName, KeyTaskKeyword, KeyRole, KeyPersonality, KeyTaskFunction}

var (
	// ErrMissingField is returned when a descriptor entry lacks a required key.
	ErrMissingField = errors.New("descriptor: missing required field")
	// ErrInvalidField is returned when a descriptor field has the wrong shape.
	ErrInvalidField = errors.New("descriptor: invalid field")
	// ErrNotFound is returned when no descriptor matches a keyword.
	ErrNotFound = errors.New("descriptor: no matching descriptor")
	// ErrDuplicateName is returned when adding a descriptor whose name is taken.
	ErrDuplicateName = errors.New("descriptor: duplicate name")
)

// Keywords is the set of task keywords a descriptor answers to. In files it
// is written either as a single string or as a list of strings.
type Keywords []string

// Match reports whether any keyword contains label, ignoring case.
// Equality is the special case of containment.
func (k Keywords) Match(label string) bool {
	label = strings.ToLower(strings.TrimSpace(label))
	if label == "" {
		return false
	}
	for _, kw := range k {
		if strings.Contains(strings.ToLower(kw), label) {
			return true
		}
	}
	return false
}

// String joins the keywords with commas.
func (k Keywords) String() string { return strings.Join(k, ",") }

// MarshalJSON writes a single keyword as a plain string.
func (k Keywords) MarshalJSON() ([]byte, error) {
	if len(k) == 1 {
		return json.Marshal(k[0])
	}
	return json.Marshal([]string(k))
}

// MarshalYAML writes a single keyword as a plain string.
func (k Keywords) MarshalYAML() (any, error) {
	if len(k) == 1 {
		return k[0], nil
	}
	return []string(k), nil
}

// Descriptor describes an agent to be lazily instantiated by the factory.
type Descriptor struct {
	Name         string
	Keywords     Keywords
	Role         string
	Personality  string
	TaskFunction string
	// Attributes holds every non-required key of the entry (priority, tools, ...).
	Attributes map[string]any
}

// Clone returns a deep enough copy for safe mutation of the result.
func (d Descriptor) Clone() Descriptor {
	c := d
	c.Keywords = append(Keywords(nil), d.Keywords...)
	if d.Attributes != nil {
		c.Attributes = make(map[string]any, len(d.Attributes))
		for k, v := range d.Attributes {
			c.Attributes[k] = v
		}
	}
	return c
}

// Validate checks that the identifying fields are populated.
func (d Descriptor) Validate() error {
	if strings.TrimSpace(d.Name) == "" {
		return fmt.Errorf("%w: %s", ErrMissingField, KeyName)
	}
	if len(d.Keywords) == 0 {
		return fmt.Errorf("%w: %s", ErrMissingField, KeyTaskKeyword)
	}
	if strings.TrimSpace(d.Role) == "" {
		return fmt.Errorf("%w: %s", ErrMissingField, KeyRole)
	}
	if strings.TrimSpace(d.TaskFunction) == "" {
		return fmt.Errorf("%w: %s", ErrMissingField, KeyTaskFunction)
	}
	return nil
}

// toMap flattens the descriptor into its file representation.
func (d Descriptor) toMap() map[string]any {
	m := make(map[string]any, len(d.Attributes)+5)
	for k, v := range d.Attributes {
		m[k] = v
	}
	m[KeyName] = d.Name
	m[KeyTaskKeyword] = d.Keywords
	m[KeyRole] = d.Role
	m[KeyPersonality] = d.Personality
	m[KeyTaskFunction] = d.TaskFunction
	return m
}

// fromMap builds a descriptor from a decoded entry. Only key presence is
// required; values must be strings (task_keyword: string or list of strings).
func fromMap(idx int, raw map[string]any) (Descriptor, error) {
	for _, key := range RequiredKeys {
		if _, ok := raw[key]; !ok {
			return Descriptor{}, fmt.Errorf("%w: entry %d has no %q", ErrMissingField, idx, key)
		}
	}

	var d Descriptor
	var err error

	if d.Name, err = stringField(idx, raw, KeyName); err != nil {
		return Descriptor{}, err
	}
	if d.Role, err = stringField(idx, raw, KeyRole); err != nil {
		return Descriptor{}, err
	}
	if d.Personality, err = stringField(idx, raw, KeyPersonality); err != nil {
		return Descriptor{}, err
	}
	if d.TaskFunction, err = stringField(idx, raw, KeyTaskFunction); err != nil {
		return Descriptor{}, err
	}
	if d.Keywords, err = keywordsField(idx, raw[KeyTaskKeyword]); err != nil {
		return Descriptor{}, err
	}

	for k, v := range raw {
		if isRequired(k) {
			continue
		}
		if d.Attributes == nil {
			d.Attributes = map[string]any{}
		}
		d.Attributes[k] = v
	}

	return d, nil
}

func isRequired(key string) bool {
	for _, k := range RequiredKeys {
		if k == key {
			return true
		}
	}
	return false
}

func stringField(idx int, raw map[string]any, key string) (string, error) {
	switch v := raw[key].(type) {
	case string:
		return v, nil
	case nil:
		return "", nil
	default:
		return "", fmt.Errorf("%w: entry %d field %q must be a string, got %T", ErrInvalidField, idx, key, v)
	}
}

func keywordsField(idx int, v any) (Keywords, error) {
	switch kw := v.(type) {
	case string:
		return Keywords{kw}, nil
	case []string:
		return append(Keywords(nil), kw...), nil
	case []any:
		out := make(Keywords, 0, len(kw))
		for _, item := range kw {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("%w: entry %d %q items must be strings, got %T", ErrInvalidField, idx, KeyTaskKeyword, item)
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: entry %d %q must be a string or list, got %T", ErrInvalidField, idx, KeyTaskKeyword, v)
	}
}

// applyUpdates merges updates into the descriptor. Required keys replace the
// corresponding field; any other key is stored as an attribute.
func (d *Descriptor) applyUpdates(updates map[string]any) error {
	keys := make([]string, 0, len(updates))
	for k := range updates {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		v := updates[k]
		switch k {
		case KeyTaskKeyword:
			kw, err := keywordsField(0, v)
			if err != nil {
				return err
			}
			d.Keywords = kw
		case KeyName, KeyRole, KeyPersonality, KeyTaskFunction:
			s, ok := v.(string)
			if !ok {
				return fmt.Errorf("%w: field %q must be a string, got %T", ErrInvalidField, k, v)
			}
			switch k {
			case KeyName:
				d.Name = s
			case KeyRole:
				d.Role = s
			case KeyPersonality:
				d.Personality = s
			case KeyTaskFunction:
				d.TaskFunction = s
			}
		default:
			if d.Attributes == nil {
				d.Attributes = map[string]any{}
			}
			d.Attributes[k] = v
		}
	}
	return d.Validate()
}

var _ yaml.Marshaler = Keywords(nil)
