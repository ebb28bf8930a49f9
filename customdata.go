package ocpp

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
)

const vendorIDField = "vendorId"

// CustomData is the OCPP vendor extension object.
// Fields besides the vendor identifier are kept as raw JSON and survive a round trip untouched.
type CustomData struct {
	VendorID string

	fields map[string]json.RawMessage
}

// NewCustomData instantiates CustomData for the vendor.
func NewCustomData(vendorID string) *CustomData {
	return &CustomData{VendorID: vendorID}
}

// Set encodes value as JSON and stores it under key.
func (c *CustomData) Set(key string, value any) error {
	if key == vendorIDField {
		return fmt.Errorf("%s is reserved", vendorIDField)
	}

	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	if c.fields == nil {
		c.fields = make(map[string]json.RawMessage)
	}
	c.fields[key] = raw
	return nil
}

// Get decodes the value stored under key into out. Reports whether the key exists.
func (c *CustomData) Get(key string, out any) (bool, error) {
	raw, ok := c.fields[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, out)
}

// Clone returns a deep copy.
func (c *CustomData) Clone() *CustomData {
	if c == nil {
		return nil
	}

	cp := &CustomData{VendorID: c.VendorID}
	if c.fields != nil {
		cp.fields = maps.Clone(c.fields)
	}
	return cp
}

// Equal compares both objects by their canonical JSON form.
func (c *CustomData) Equal(o *CustomData) bool {
	if c == nil || o == nil {
		return c == o
	}
	return bytes.Equal(c.canonical(), o.canonical())
}

// canonical returns RFC 8785 bytes of the object, or nil for nil CustomData.
// Objects holding numbers a double cannot represent fall back to their plain encoding.
func (c *CustomData) canonical() []byte {
	if c == nil {
		return nil
	}

	raw, err := c.MarshalJSON()
	if err != nil {
		return nil
	}
	canonical, err := transform(raw)
	if err != nil {
		return raw
	}
	return canonical
}

func (c *CustomData) MarshalJSON() ([]byte, error) {
	obj := make(map[string]json.RawMessage, len(c.fields)+1)
	maps.Copy(obj, c.fields)

	vendorID, err := json.Marshal(c.VendorID)
	if err != nil {
		return nil, err
	}
	obj[vendorIDField] = vendorID
	return json.Marshal(obj)
}

func (c *CustomData) UnmarshalJSON(data []byte) error {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("customData: %w", err)
	}

	raw, ok := obj[vendorIDField]
	if !ok {
		return errors.New("customData: missing vendorId")
	}
	var vendorID string
	if err := json.Unmarshal(raw, &vendorID); err != nil {
		return fmt.Errorf("customData: invalid vendorId: %w", err)
	}
	delete(obj, vendorIDField)

	c.VendorID = vendorID
	c.fields = nil
	if len(obj) > 0 {
		c.fields = obj
	}
	return nil
}
