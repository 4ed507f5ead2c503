package types

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// FlexString decodes a JSON string or number into its textual form. The
// checkout provider sends order and SKU ids either way.
type FlexString string

// UnmarshalJSON accepts a JSON string, a number, or null.
func (f *FlexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case bytes.Equal(b, []byte("null")):
		*f = ""
		return nil
	case len(b) > 0 && b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = FlexString(s)
		return nil
	default:
		var n json.Number
		if err := json.Unmarshal(b, &n); err != nil {
			return fmt.Errorf("flexstring: expected string or number, got %s", b)
		}
		*f = FlexString(n.String())
		return nil
	}
}

// String returns the value as text.
func (f FlexString) String() string { return string(f) }
