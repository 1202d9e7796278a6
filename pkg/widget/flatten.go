package widget

import (
	"bytes"
	"encoding/json"
	"strings"
)

// Field is a single named value in a FlatRecord.
type Field struct {
	Name  string
	Value string
}

// FlatRecord is the single-level, ordered attribute view of a widget that the
// storage backends persist.
type FlatRecord []Field

// Get returns the value stored under name.
func (r FlatRecord) Get(name string) (string, bool) {
	for _, f := range r {
		if f.Name == name {
			return f.Value, true
		}
	}
	return "", false
}

// Keys returns the field names in record order.
func (r FlatRecord) Keys() []string {
	keys := make([]string, len(r))
	for i, f := range r {
		keys[i] = f.Name
	}
	return keys
}

// Map converts the record into the generic map form used by document and hash stores.
func (r FlatRecord) Map() map[string]interface{} {
	m := make(map[string]interface{}, len(r))
	for _, f := range r {
		m[f.Name] = f.Value
	}
	return m
}

// MarshalJSON encodes the record as a JSON object, keeping field order.
func (r FlatRecord) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range r {
		if i > 0 {
			buf.WriteByte(',')
		}
		name, err := json.Marshal(f.Name)
		if err != nil {
			return nil, err
		}
		value, err := json.Marshal(f.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(name)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// set overwrites an existing field in place or appends a new one.
func (r FlatRecord) set(name, value string) FlatRecord {
	for i := range r {
		if r[i].Name == name {
			r[i].Value = value
			return r
		}
	}
	return append(r, Field{Name: name, Value: value})
}

// OwnerSlug normalizes an owner name into a storage path segment,
// e.g. "Alice Smith" becomes "alice-smith".
func OwnerSlug(owner string) string {
	return strings.ReplaceAll(strings.ToLower(owner), " ", "-")
}

// Flatten builds the widget's attribute record: widgetId, owner, label and
// description followed by every other attribute in request order. Absent
// optional values are dropped. An other attribute named like one of the four
// leading fields replaces that field's value in its slot, even when the
// request left it out.
func Flatten(req *Request) FlatRecord {
	rec := make(FlatRecord, 0, 4+len(req.OtherAttributes))
	rec = append(rec,
		Field{Name: "widgetId", Value: req.WidgetID},
		Field{Name: "owner", Value: req.Owner},
		Field{Name: "label"},
		Field{Name: "description"},
	)
	absent := map[string]bool{}
	if req.Label != nil {
		rec[2].Value = *req.Label
	} else {
		absent["label"] = true
	}
	if req.Description != nil {
		rec[3].Value = *req.Description
	} else {
		absent["description"] = true
	}

	for _, attr := range req.OtherAttributes {
		rec = rec.set(attr.Name, attr.Value)
		delete(absent, attr.Name)
	}

	out := rec[:0]
	for _, f := range rec {
		if !absent[f.Name] {
			out = append(out, f)
		}
	}
	return out
}
