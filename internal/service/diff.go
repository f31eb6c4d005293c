package service

import (
	"encoding/json"
	"reflect"

	"vfxpublish/internal/domain"
)

// Diff returns the fields of candidate that differ from existing. Top-level
// keys are copied verbatim; attributes are compared key by key and nested
// under a single "attrib" entry that is omitted when nothing changed.
// Neither argument is modified.
func Diff(existing, candidate domain.Entity) domain.Entity {
	changes := domain.Entity{}
	for key, value := range candidate {
		if key == domain.FieldAttrib {
			continue
		}
		old, ok := existing[key]
		if !ok || !valuesEqual(old, value) {
			changes[key] = value
		}
	}

	newAttrib, ok := candidate[domain.FieldAttrib].(map[string]any)
	if !ok {
		return changes
	}
	oldAttrib := existing.Attrib()
	attribChanges := map[string]any{}
	for key, value := range newAttrib {
		old, ok := oldAttrib[key]
		if !ok || !valuesEqual(old, value) {
			attribChanges[key] = value
		}
	}
	if len(attribChanges) > 0 {
		changes[domain.FieldAttrib] = attribChanges
	}
	return changes
}

// valuesEqual compares by value after a JSON round trip, so a []string built
// in memory equals the []any decoded from the store and 1 equals 1.0.
func valuesEqual(a, b any) bool {
	na, errA := normalize(a)
	nb, errB := normalize(b)
	if errA != nil || errB != nil {
		return reflect.DeepEqual(a, b)
	}
	return reflect.DeepEqual(na, nb)
}

func normalize(v any) (any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}
