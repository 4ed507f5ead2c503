package types

import (
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

var (
	_ sql.Scanner   = (*UpsellList)(nil)
	_ driver.Valuer = UpsellList(nil)
	_ sql.Scanner   = (*BenefitList)(nil)
	_ driver.Valuer = BenefitList(nil)
)

// scanJSONB scans a JSONB database value into a Go pointer.
// It handles nil values, []byte, and string representations from different drivers.
func scanJSONB(dest any, value any) error {
	if value == nil {
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("jsonb: unsupported scan type %T", value)
	}
	return json.Unmarshal(data, dest)
}

// Scan implements sql.Scanner.
func (l *UpsellList) Scan(value any) error {
	if value == nil {
		*l = nil
		return nil
	}
	return scanJSONB(l, value)
}

// Value implements driver.Valuer. An empty selection is stored as an empty
// array rather than NULL so that jsonb_array_length works in reports.
func (l UpsellList) Value() (driver.Value, error) {
	if l == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]UpsellItem(l))
}

// Scan implements sql.Scanner.
func (b *BenefitList) Scan(value any) error {
	if value == nil {
		*b = nil
		return nil
	}
	return scanJSONB(b, value)
}

// Value implements driver.Valuer.
func (b BenefitList) Value() (driver.Value, error) {
	if b == nil {
		return nil, nil
	}
	return json.Marshal([]string(b))
}
