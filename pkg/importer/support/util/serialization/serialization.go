// Package serialization converts importer values to and from the JSON stored in
// the checkpoint cache and in text columns of the import tables.
package serialization

import (
	"encoding/json"
	"fmt"

	"github.com/tigerroll/surfin-import/pkg/importer/support/util/exception"
	"github.com/tigerroll/surfin-import/pkg/importer/support/util/logger"
)

const module = "serialization"

// Marshal serializes v into JSON. what names the value in error messages.
func Marshal(what string, v interface{}) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		logger.Errorf("Failed to serialize %s: %v", what, err)
		return nil, exception.NewImportError(module, fmt.Sprintf("failed to serialize %s", what), err)
	}
	return data, nil
}

// Unmarshal deserializes JSON data into a value of type T.
// Empty input and the JSON literal null yield the zero value of T.
func Unmarshal[T any](what string, data []byte) (T, error) {
	var out T
	if len(data) == 0 || string(data) == "null" {
		return out, nil
	}
	if err := json.Unmarshal(data, &out); err != nil {
		logger.Errorf("Failed to deserialize %s: %v", what, err)
		return out, exception.NewImportError(module, fmt.Sprintf("failed to deserialize %s", what), err)
	}
	return out, nil
}

// MarshalStrings serializes a string list for a text column. A nil list becomes "[]".
func MarshalStrings(values []string) (string, error) {
	if values == nil {
		return "[]", nil
	}
	data, err := Marshal("string list", values)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// UnmarshalStrings is the inverse of MarshalStrings.
func UnmarshalStrings(text string) ([]string, error) {
	values, err := Unmarshal[[]string]("string list", []byte(text))
	if err != nil {
		return nil, err
	}
	if values == nil {
		values = []string{}
	}
	return values, nil
}

// MarshalInts serializes an int list (e.g. row indexes) for a text column.
func MarshalInts(values []int) (string, error) {
	if values == nil {
		return "[]", nil
	}
	data, err := Marshal("int list", values)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// UnmarshalInts is the inverse of MarshalInts.
func UnmarshalInts(text string) ([]int, error) {
	values, err := Unmarshal[[]int]("int list", []byte(text))
	if err != nil {
		return nil, err
	}
	if values == nil {
		values = []int{}
	}
	return values, nil
}
