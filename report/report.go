// ABOUTME: Report is a decoded MDT report JSON document that preserves object key order.
// ABOUTME: Decode keeps the raw bytes so unparseable payloads can still be shown to the user.
package report

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// Narrative field names, preferred first.
const (
	FieldMarkdownSummary = "markdown_summary"
	FieldMarkdownContent = "markdown_content"
	FieldPatientID       = "patient_id"
)

// Report is one decoded report.
type Report struct {
	Raw       []byte
	Value     any  // *Object, []any, string, json.Number, bool or nil
	Synthetic bool // built locally from agent states, not returned by the backend
}

// ParseError means the payload was not valid JSON. Raw is shown verbatim.
type ParseError struct {
	Raw string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse report JSON: %v", e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Object is a JSON object with its keys in document order.
type Object struct {
	Keys   []string
	Values map[string]any
}

// NewObject returns an empty object.
func NewObject() *Object {
	return &Object{Values: make(map[string]any)}
}

// Set adds or replaces key. New keys go to the end.
func (o *Object) Set(key string, v any) *Object {
	if _, ok := o.Values[key]; !ok {
		o.Keys = append(o.Keys, key)
	}
	o.Values[key] = v
	return o
}

// Get returns the value for key.
func (o *Object) Get(key string) (any, bool) {
	if o == nil {
		return nil, false
	}
	v, ok := o.Values[key]
	return v, ok
}

// MarshalJSON writes the object with keys in document order.
func (o *Object) MarshalJSON() ([]byte, error) {
	var b bytes.Buffer
	b.WriteByte('{')
	for i, k := range o.Keys {
		if i > 0 {
			b.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		b.Write(kb)
		b.WriteByte(':')
		vb, err := json.Marshal(o.Values[k])
		if err != nil {
			return nil, err
		}
		b.Write(vb)
	}
	b.WriteByte('}')
	return b.Bytes(), nil
}

// Decode parses raw as a single JSON document.
func Decode(raw []byte) (*Report, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	v, err := decodeValue(dec)
	if err == nil {
		if _, terr := dec.Token(); terr != io.EOF {
			err = errors.New("unexpected data after top-level value")
		}
	}
	if err != nil {
		return nil, &ParseError{Raw: string(raw), Err: err}
	}
	return &Report{Raw: raw, Value: v}, nil
}

func decodeValue(dec *json.Decoder) (any, error) {
	tok, err := dec.Token()
	if err != nil {
		if err == io.EOF {
			return nil, io.ErrUnexpectedEOF
		}
		return nil, err
	}

	delim, ok := tok.(json.Delim)
	if !ok {
		return tok, nil
	}

	switch delim {
	case '{':
		obj := NewObject()
		for dec.More() {
			kt, err := dec.Token()
			if err != nil {
				return nil, err
			}
			key, ok := kt.(string)
			if !ok {
				return nil, fmt.Errorf("object key is %T", kt)
			}
			v, err := decodeValue(dec)
			if err != nil {
				return nil, err
			}
			obj.Set(key, v)
		}
		if _, err := dec.Token(); err != nil {
			return nil, err
		}
		return obj, nil
	case '[':
		arr := []any{}
		for dec.More() {
			v, err := decodeValue(dec)
			if err != nil {
				return nil, err
			}
			arr = append(arr, v)
		}
		if _, err := dec.Token(); err != nil {
			return nil, err
		}
		return arr, nil
	default:
		return nil, fmt.Errorf("unexpected delimiter %q", delim)
	}
}

// Fields returns the top-level object, or nil when the report is not an object.
func (r *Report) Fields() *Object {
	if r == nil {
		return nil
	}
	obj, _ := r.Value.(*Object)
	return obj
}

// PatientID returns the patient_id field as text, or "" when absent.
func (r *Report) PatientID() string {
	v, ok := r.Fields().Get(FieldPatientID)
	if !ok || v == nil {
		return ""
	}
	return scalarText(v)
}

// Narrative returns the pre-rendered Markdown carried by the report, if any.
func (r *Report) Narrative() (string, bool) {
	for _, f := range []string{FieldMarkdownSummary, FieldMarkdownContent} {
		if v, ok := r.Fields().Get(f); ok {
			if s, ok := v.(string); ok && s != "" {
				return s, true
			}
		}
	}
	return "", false
}

// PrettyJSON returns the structured view with two-space indentation.
func (r *Report) PrettyJSON() string {
	b, err := json.MarshalIndent(r.Value, "", "  ")
	if err != nil {
		return string(r.Raw)
	}
	return string(b)
}
