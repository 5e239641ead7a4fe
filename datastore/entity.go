// Copyright 2015 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package datastore

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/diffeo/go-modelrest/model"
	"github.com/diffeo/go-modelrest/serialization"
)

// storedValue converts a property value to the form kept in the
// entity record: times become their canonical text and references
// their encoded key.
func storedValue(f *model.Field, v interface{}) (interface{}, error) {
	v, err := f.Coerce(v)
	if err != nil || v == nil {
		return v, err
	}
	switch f.Kind() {
	case model.DateKind, model.DateTimeKind, model.TimeKind:
		return model.FormatTime(f.Kind(), v.(time.Time)), nil
	case model.ToOneKind:
		key, err := DecodeKey(model.ToString(v))
		if err != nil {
			return nil, err
		}
		return key.Encode(), nil
	}
	return v, nil
}

// encodeEntity produces the stored record of obj.  Every property of
// the model is present, nil if obj has no value for it.
func encodeEntity(obj *model.Object) ([]byte, error) {
	record := make(map[string]interface{}, len(obj.Model.Fields))
	for _, f := range obj.Model.Fields {
		v, err := storedValue(f, obj.Values[f.Name])
		if err != nil {
			return nil, err
		}
		record[f.Name] = v
	}
	var buf bytes.Buffer
	if err := serialization.EncodeCBOR(&buf, record); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// decodeEntity rebuilds an object from its stored record.  Properties
// the record lacks, because the model gained them later, take their
// defaults.
func decodeEntity(m *model.Model, key Key, data []byte) (*model.Object, error) {
	raw, err := serialization.DecodeCBOR(data)
	if err != nil {
		return nil, err
	}
	record, ok := raw.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("datastore: entity %v is not a record", key)
	}
	obj := model.NewObject(m)
	obj.PK = key.Encode()
	for _, f := range m.Fields {
		v, present := record[f.Name]
		if !present {
			v = f.DefaultValue()
		}
		if v, err = f.Coerce(v); err != nil {
			return nil, err
		}
		obj.Set(f.Name, v)
	}
	return obj, nil
}

// compareValues orders two property values.  nil sorts before
// everything; values of different types do not compare.
func compareValues(a, b interface{}) (int, bool) {
	if a == nil || b == nil {
		switch {
		case a == nil && b == nil:
			return 0, true
		case a == nil:
			return -1, true
		}
		return 1, true
	}
	switch x := a.(type) {
	case string:
		if y, ok := b.(string); ok {
			return strings.Compare(x, y), true
		}
	case bool:
		if y, ok := b.(bool); ok {
			switch {
			case x == y:
				return 0, true
			case !x:
				return -1, true
			}
			return 1, true
		}
	case time.Time:
		if y, ok := b.(time.Time); ok {
			switch {
			case x.Before(y):
				return -1, true
			case x.After(y):
				return 1, true
			}
			return 0, true
		}
	case []byte:
		if y, ok := b.([]byte); ok {
			return bytes.Compare(x, y), true
		}
	case int64, float64:
		switch b.(type) {
		case int64, float64:
			fx, _ := model.ToFloat(x)
			fy, _ := model.ToFloat(b)
			switch {
			case fx < fy:
				return -1, true
			case fx > fy:
				return 1, true
			}
			return 0, true
		}
	}
	return 0, false
}
