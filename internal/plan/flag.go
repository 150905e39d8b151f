package plan

import (
	"encoding/json"
	"strings"
)

// Flag is a boolean that tolerates the value shapes meal-plan payloads
// actually arrive in: native JSON booleans, checkbox strings, or numbers.
// The accepted truthy tokens are exactly "on", "true" and "1"
// (case-insensitive); everything else decodes to false.
type Flag bool

func (f *Flag) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	switch t := v.(type) {
	case bool:
		*f = Flag(t)
	case string:
		*f = Flag(Truthy(t))
	case float64:
		*f = Flag(t == 1)
	default:
		*f = false
	}
	return nil
}

// Truthy reports whether a form value is one of the accepted truthy tokens.
func Truthy(s string) bool {
	switch strings.ToLower(s) {
	case "on", "true", "1":
		return true
	}
	return false
}
