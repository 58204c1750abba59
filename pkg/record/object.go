// Package record holds NHL API documents as ordered JSON values.
//
// Objects keep the key order of the payload and numbers keep their exact
// decimal text (json.Number), so a decoded record can be re-encoded without
// reordering fields or rounding statistics such as save percentages.
//
// Decoded values are one of: nil, bool, string, json.Number, []any, *Object.
package record

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"

	jsoniter "github.com/json-iterator/go"
)

// ErrNotObject is returned by DecodeObject when the document is not a JSON object.
var ErrNotObject = errors.New("record: document is not a JSON object")

var api = jsoniter.Config{
	EscapeHTML:             false,
	UseNumber:              true,
	SortMapKeys:            true,
	ValidateJsonRawMessage: true,
}.Froze()

// Object is a JSON object that remembers insertion order.
type Object struct {
	keys   []string
	values map[string]any
}

// NewObject returns an empty object.
func NewObject() *Object {
	return &Object{values: make(map[string]any)}
}

// Get returns the value under key.
func (o *Object) Get(key string) (any, bool) {
	if o == nil {
		return nil, false
	}
	v, ok := o.values[key]
	return v, ok
}

// Set stores value under key. A new key is appended; an existing key keeps
// its position.
func (o *Object) Set(key string, value any) {
	if _, ok := o.values[key]; !ok {
		o.keys = append(o.keys, key)
	}
	o.values[key] = value
}

// Delete removes key.
func (o *Object) Delete(key string) {
	if _, ok := o.values[key]; !ok {
		return
	}
	delete(o.values, key)
	for i, k := range o.keys {
		if k == key {
			o.keys = append(o.keys[:i], o.keys[i+1:]...)
			break
		}
	}
}

// Keys returns the keys in insertion order.
func (o *Object) Keys() []string {
	if o == nil {
		return nil
	}
	out := make([]string, len(o.keys))
	copy(out, o.keys)
	return out
}

// Len returns the number of keys.
func (o *Object) Len() int {
	if o == nil {
		return 0
	}
	return len(o.keys)
}

// Int64 returns the value under key as an integer when it is a whole JSON number.
func (o *Object) Int64(key string) (int64, bool) {
	v, ok := o.Get(key)
	if !ok {
		return 0, false
	}
	n, ok := v.(json.Number)
	if !ok {
		return 0, false
	}
	i, err := strconv.ParseInt(n.String(), 10, 64)
	if err != nil {
		return 0, false
	}
	return i, true
}

// MarshalJSON encodes the object with keys in insertion order.
func (o *Object) MarshalJSON() ([]byte, error) {
	if o == nil {
		return []byte("null"), nil
	}
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, key := range o.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := api.Marshal(key)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')

		v, err := api.Marshal(o.values[key])
		if err != nil {
			return nil, fmt.Errorf("encode %q: %w", key, err)
		}
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Marshal encodes any decoded value.
func Marshal(v any) ([]byte, error) {
	return api.Marshal(v)
}

// Decode parses a JSON document into ordered values.
func Decode(data []byte) (any, error) {
	// The iterator reports a truncated document as io.EOF, same as a
	// complete one, so syntax is checked up front.
	if !json.Valid(data) {
		return nil, fmt.Errorf("decode record: invalid JSON document")
	}
	iter := jsoniter.ParseBytes(api, data)
	v := readValue(iter)
	if iter.Error != nil && !errors.Is(iter.Error, io.EOF) {
		return nil, fmt.Errorf("decode record: %w", iter.Error)
	}
	return v, nil
}

// DecodeObject parses a JSON document that must be an object.
func DecodeObject(data []byte) (*Object, error) {
	v, err := Decode(data)
	if err != nil {
		return nil, err
	}
	obj, ok := v.(*Object)
	if !ok {
		return nil, ErrNotObject
	}
	return obj, nil
}

func readValue(iter *jsoniter.Iterator) any {
	switch iter.WhatIsNext() {
	case jsoniter.ObjectValue:
		obj := NewObject()
		iter.ReadObjectCB(func(it *jsoniter.Iterator, key string) bool {
			obj.Set(key, readValue(it))
			return it.Error == nil
		})
		return obj
	case jsoniter.ArrayValue:
		arr := []any{}
		iter.ReadArrayCB(func(it *jsoniter.Iterator) bool {
			arr = append(arr, readValue(it))
			return it.Error == nil
		})
		return arr
	case jsoniter.StringValue:
		return iter.ReadString()
	case jsoniter.NumberValue:
		return iter.ReadNumber()
	case jsoniter.BoolValue:
		return iter.ReadBool()
	case jsoniter.NilValue:
		iter.ReadNil()
		return nil
	default:
		iter.ReportError("readValue", "expected a JSON value")
		return nil
	}
}
