package display

import (
	"encoding/json"
)

// MarshalJSON marshals JSON with two-space indentation. Map keys come out
// sorted, so repeated runs print identical output.
func MarshalJSON(v interface{}) ([]byte, error) {
	return json.MarshalIndent(v, "", "  ")
}
