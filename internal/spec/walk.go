package spec

import (
	"bytes"
	"encoding/json"
)

// Dehydrate splits a document into a flat map of field id to fragment by
// walking the specification depth-first. Absent or null paths are simply
// omitted; partial documents are legal. The only error condition is a
// structural mismatch: a non-object value where the specification expects a
// section.
func Dehydrate(s *Spec, document json.RawMessage) (map[string]Leaf, error) {
	out := map[string]Leaf{}
	if isAbsent(document) {
		return out, nil
	}
	if err := dehydrateSection(s.root, "", document, out); err != nil {
		return nil, err
	}
	return out, nil
}

func dehydrateSection(section *Section, path string, raw json.RawMessage, out map[string]Leaf) error {
	var asMap map[string]json.RawMessage
	if err := json.Unmarshal(raw, &asMap); err != nil {
		return &StructuralMismatchError{Path: path}
	}
	for _, child := range section.Children {
		childRaw, ok := asMap[child.Key]
		if !ok || isAbsent(childRaw) {
			continue
		}
		childPath := joinPath(path, child.Key)
		if child.Field != nil {
			out[child.Field.ID] = Leaf{
				FieldID: child.Field.ID,
				Path:    childPath,
				Content: childRaw,
			}
			continue
		}
		if err := dehydrateSection(child.Section, childPath, childRaw, out); err != nil {
			return err
		}
	}
	return nil
}

// Hydrate rebuilds a document from per-field fragments. The lookup returns the
// fragment for a field id, or false when the field has no value; fields and
// whole sections without any value are omitted from the output, never
// null-filled. Section key order follows the specification.
func Hydrate(s *Spec, lookup func(fieldID string) (json.RawMessage, bool)) (json.RawMessage, error) {
	raw, present, err := hydrateSection(s.root, lookup)
	if err != nil {
		return nil, err
	}
	if !present {
		return json.RawMessage("{}"), nil
	}
	return raw, nil
}

// HydrateMap is a convenience wrapper over Hydrate for callers that already
// hold all fragments in a map.
func HydrateMap(s *Spec, fragments map[string]json.RawMessage) (json.RawMessage, error) {
	return Hydrate(s, func(fieldID string) (json.RawMessage, bool) {
		raw, ok := fragments[fieldID]
		return raw, ok
	})
}

func hydrateSection(section *Section, lookup func(string) (json.RawMessage, bool)) (json.RawMessage, bool, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	wrote := false

	for _, child := range section.Children {
		var childRaw json.RawMessage
		if child.Field != nil {
			raw, ok := lookup(child.Field.ID)
			if !ok || isAbsent(raw) {
				continue
			}
			childRaw = raw
		} else {
			raw, present, err := hydrateSection(child.Section, lookup)
			if err != nil {
				return nil, false, err
			}
			if !present {
				continue
			}
			childRaw = raw
		}

		if wrote {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(child.Key)
		if err != nil {
			return nil, false, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(childRaw)
		wrote = true
	}

	buf.WriteByte('}')
	if !wrote {
		return nil, false, nil
	}
	return json.RawMessage(buf.Bytes()), true, nil
}

func isAbsent(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}
