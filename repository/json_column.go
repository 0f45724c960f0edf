package repository

import (
	"encoding/json"
	"log/slog"
	"reflect"
)

// marshalJSONColumn serializes v into the TEXT a JSON-valued column stores,
// grounded on the metadata-as-TEXT pattern (json.Marshal into a NullString
// column) used across the pack's SQLite stores. An untyped nil v persists as
// an empty JSON object rather than SQL NULL so scans never need a nullable
// intermediate; a typed nil (nil slice, map or pointer) is stored as the
// JSON text null.
func marshalJSONColumn(v any) (string, error) {
	if v == nil {
		return "{}", nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// unmarshalJSONColumn decodes a TEXT column back into *v. An empty string
// (pre-migration rows, or a column that was never set) is treated as
// "nothing to decode" rather than an error. Malformed JSON is logged as a
// warning and leaves *v at its zero value, so a read never fails on it.
func unmarshalJSONColumn(raw string, v any) error {
	if raw == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		slog.Warn("malformed JSON column, using zero value", "error", err)
		if rv := reflect.ValueOf(v); rv.Kind() == reflect.Pointer && !rv.IsNil() {
			rv.Elem().Set(reflect.Zero(rv.Elem().Type()))
		}
	}
	return nil
}
