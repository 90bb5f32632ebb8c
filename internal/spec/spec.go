// Package spec models a framework field specification as a closed tree of
// sections and typed leaf fields, and implements the lossless decomposition of
// a disclosure document into field-keyed fragments (Dehydrate) together with
// its inverse (Hydrate).
package spec

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Spec is an immutable, parsed framework specification. Field ids are unique
// across the whole tree.
type Spec struct {
	root   *Section
	fields map[string]*Field
	order  []string
}

// Section is an inner node with an ordered list of named children.
type Section struct {
	Children []Child
}

// Child is one named entry of a section: exactly one of Section or Field is
// set.
type Child struct {
	Key     string
	Section *Section
	Field   *Field
}

// Field is a leaf of the specification: one atomic, independently reviewable
// data point type.
type Field struct {
	ID   string
	Path string
}

// Leaf is one dehydrated fragment of a document.
type Leaf struct {
	FieldID string
	Path    string
	Content json.RawMessage
}

// StructuralMismatchError reports that a document does not follow the
// specification shape at the given path.
type StructuralMismatchError struct {
	Path string
}

func (e *StructuralMismatchError) Error() string {
	return fmt.Sprintf("document does not match specification shape at %q", e.Path)
}

// UnexpectedFieldError reports field ids present in an input map but absent
// from the specification. Callers decide whether this rejects the input or is
// only warned about.
type UnexpectedFieldError struct {
	FieldIDs []string
}

func (e *UnexpectedFieldError) Error() string {
	return fmt.Sprintf("fields not part of the specification: %s", strings.Join(e.FieldIDs, ", "))
}

// Parse builds a Spec from a framework schema document. The schema is a nested
// JSON object in which a leaf carries an "id" property naming its data point
// type; every other object is a section. Key order of the schema document is
// preserved. Duplicate field ids are rejected.
func Parse(schema json.RawMessage) (*Spec, error) {
	dec := json.NewDecoder(strings.NewReader(string(schema)))
	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("parse specification: %w", err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, fmt.Errorf("parse specification: root must be an object")
	}

	s := &Spec{fields: map[string]*Field{}}
	root, err := s.parseSection(dec, "")
	if err != nil {
		return nil, err
	}
	s.root = root
	return s, nil
}

func (s *Spec) parseSection(dec *json.Decoder, path string) (*Section, error) {
	section := &Section{}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("parse specification: %w", err)
		}
		key := keyTok.(string)
		childPath := joinPath(path, key)

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, fmt.Errorf("parse specification at %q: %w", childPath, err)
		}

		child, err := s.parseChild(key, childPath, raw)
		if err != nil {
			return nil, err
		}
		section.Children = append(section.Children, child)
	}
	// consume the closing brace
	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("parse specification: %w", err)
	}
	return section, nil
}

func (s *Spec) parseChild(key, path string, raw json.RawMessage) (Child, error) {
	var asMap map[string]json.RawMessage
	if err := json.Unmarshal(raw, &asMap); err != nil {
		return Child{}, fmt.Errorf("parse specification at %q: expected an object", path)
	}

	if idRaw, ok := asMap["id"]; ok {
		var id string
		if err := json.Unmarshal(idRaw, &id); err == nil && id != "" {
			if _, exists := s.fields[id]; exists {
				return Child{}, fmt.Errorf("parse specification: duplicate field id %q", id)
			}
			field := &Field{ID: id, Path: path}
			s.fields[id] = field
			s.order = append(s.order, id)
			return Child{Key: key, Field: field}, nil
		}
	}

	sub := &Section{}
	dec := json.NewDecoder(strings.NewReader(string(raw)))
	if _, err := dec.Token(); err != nil {
		return Child{}, fmt.Errorf("parse specification at %q: %w", path, err)
	}
	parsed, err := s.parseSection(dec, path)
	if err != nil {
		return Child{}, err
	}
	*sub = *parsed
	return Child{Key: key, Section: sub}, nil
}

// FieldIDs returns all field ids of the specification in document order.
func (s *Spec) FieldIDs() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// HasField reports whether the given field id is part of the specification.
func (s *Spec) HasField(id string) bool {
	_, ok := s.fields[id]
	return ok
}

// UnknownFieldIDs returns the subset of keys that do not name a field of the
// specification, in input order.
func (s *Spec) UnknownFieldIDs(keys []string) []string {
	var unknown []string
	for _, k := range keys {
		if !s.HasField(k) {
			unknown = append(unknown, k)
		}
	}
	return unknown
}

func joinPath(base, key string) string {
	if base == "" {
		return key
	}
	return base + "." + key
}
