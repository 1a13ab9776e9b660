package database

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// StringList is a GORM column type for an ordered []string stored as JSON text.
// Order and duplicates are preserved exactly as written.
type StringList []string

// Scan implements the sql.Scanner interface for StringList.
func (s *StringList) Scan(value any) error {
	raw, err := jsonColumn("StringList", value)
	if err != nil || raw == nil {
		*s = nil
		return err
	}
	return json.Unmarshal(raw, s)
}

// Value implements the driver.Valuer interface for StringList.
// A nil list is stored as an empty JSON array so the column can stay NOT NULL.
func (s StringList) Value() (driver.Value, error) {
	if s == nil {
		return "[]", nil
	}
	return encodeColumn([]string(s))
}

// JSONMap is a GORM column type for map[string]any stored as JSON text.
type JSONMap map[string]any

// Scan implements the sql.Scanner interface for JSONMap.
func (m *JSONMap) Scan(value any) error {
	raw, err := jsonColumn("JSONMap", value)
	if err != nil || raw == nil {
		*m = nil
		return err
	}
	return json.Unmarshal(raw, m)
}

// Value implements the driver.Valuer interface for JSONMap. A nil map is
// stored as NULL.
func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	return encodeColumn(map[string]any(m))
}

// jsonColumn returns the raw JSON held by a text or blob column, or nil for
// NULL and empty values.
func jsonColumn(typeName string, value any) ([]byte, error) {
	var raw []byte
	switch v := value.(type) {
	case nil:
		return nil, nil
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return nil, fmt.Errorf("cannot scan %T into %s", value, typeName)
	}
	if len(raw) == 0 {
		return nil, nil
	}
	return raw, nil
}

func encodeColumn(v any) (driver.Value, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}
