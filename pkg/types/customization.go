package types

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

// Customization is an opaque structured document carried from cart line to order item.
// Made-to-order products also use it for their option schema. Nothing in the scheduling
// core inspects its contents.
type Customization map[string]any

func (c Customization) Value() (driver.Value, error) {
	if c == nil {
		return nil, nil
	}
	payload, err := json.Marshal(map[string]any(c))
	if err != nil {
		return nil, fmt.Errorf("customization: %w", err)
	}
	return string(payload), nil
}

func (c *Customization) Scan(value interface{}) error {
	var raw []byte
	switch v := value.(type) {
	case nil:
		*c = nil
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("customization: unsupported scan type %T", value)
	}
	if len(raw) == 0 {
		*c = nil
		return nil
	}
	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return fmt.Errorf("customization: %w", err)
	}
	*c = decoded
	return nil
}

func (Customization) GormDataType() string {
	return "json"
}

func (Customization) GormDBDataType(db *gorm.DB, _ *schema.Field) string {
	if db.Dialector.Name() == "postgres" {
		return "jsonb"
	}
	return "text"
}
