package postgres

import (
	"encoding/json"

	"gorm.io/datatypes"
)

// EncodeList stores a string list in a JSON column. nil becomes [].
func EncodeList(values []string) datatypes.JSON {
	if values == nil {
		values = []string{}
	}
	b, _ := json.Marshal(values)
	return datatypes.JSON(b)
}

// DecodeList reads a JSON column written by EncodeList. Malformed or empty
// columns decode as an empty list.
func DecodeList(raw datatypes.JSON) []string {
	values := []string{}
	if len(raw) == 0 {
		return values
	}
	if err := json.Unmarshal(raw, &values); err != nil {
		return []string{}
	}
	return values
}

func ContainsString(values []string, v string) bool {
	for _, s := range values {
		if s == v {
			return true
		}
	}
	return false
}
