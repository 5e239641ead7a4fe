// Copyright 2015 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package serialization

import (
	"fmt"
	"reflect"
	"time"

	"github.com/diffeo/go-modelrest/model"
	"github.com/mitchellh/mapstructure"
)

// Deconstruct reduces a value to plain maps with string keys, slices
// of interface{}, and scalars, which every emitter can encode.  Times
// become "2006-01-02 15:04:05" strings, byte slices become strings,
// model objects take their serialized form, and structs become maps
// keyed by their mapstructure names.
func Deconstruct(v interface{}) interface{} {
	switch t := v.(type) {
	case nil:
		return nil
	case string, bool, int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64, float32, float64:
		return t
	case time.Time:
		return t.Format(model.DateTimeLayout)
	case []byte:
		return string(t)
	case error:
		return t.Error()
	case *model.Object:
		return SerializeObject(t, nil)
	case []*model.Object:
		return SerializeObjects(t, nil)
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, vv := range t {
			out[k] = Deconstruct(vv)
		}
		return out
	case map[interface{}]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, vv := range t {
			out[model.ToString(k)] = Deconstruct(vv)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, vv := range t {
			out[i] = Deconstruct(vv)
		}
		return out
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Interface:
		if rv.IsNil() {
			return nil
		}
		return Deconstruct(rv.Elem().Interface())
	case reflect.Slice, reflect.Array:
		out := make([]interface{}, rv.Len())
		for i := range out {
			out[i] = Deconstruct(rv.Index(i).Interface())
		}
		return out
	case reflect.Map:
		out := make(map[string]interface{}, rv.Len())
		for _, key := range rv.MapKeys() {
			out[fmt.Sprint(key.Interface())] = Deconstruct(rv.MapIndex(key).Interface())
		}
		return out
	case reflect.Struct:
		out := make(map[string]interface{})
		if err := mapstructure.Decode(v, &out); err != nil {
			return fmt.Sprintf("%+v", v)
		}
		return Deconstruct(out)
	case reflect.String:
		return rv.String()
	case reflect.Bool:
		return rv.Bool()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return rv.Uint()
	case reflect.Float32, reflect.Float64:
		return rv.Float()
	}
	return v
}

// DeconstructField is Deconstruct with knowledge of the field kind,
// so dates and times use their own layouts.
func DeconstructField(f *model.Field, v interface{}) interface{} {
	if t, ok := v.(time.Time); ok {
		return model.FormatTime(f.Kind(), t)
	}
	return Deconstruct(v)
}

// SerializeObject produces the standard object form
//
//     {"pk": 1, "model": "polls.poll", "fields": {...}}
//
// If fields is non-empty, only those fields are included.
func SerializeObject(o *model.Object, fields []string) map[string]interface{} {
	var wanted map[string]bool
	if len(fields) > 0 {
		wanted = make(map[string]bool, len(fields))
		for _, name := range fields {
			wanted[name] = true
		}
	}
	values := make(map[string]interface{})
	for _, f := range o.Model.Fields {
		if f.PrimaryKey || (wanted != nil && !wanted[f.Name]) {
			continue
		}
		values[f.Name] = DeconstructField(f, o.Values[f.Name])
	}
	return map[string]interface{}{
		"pk":     o.PK,
		"model":  o.Model.ObjectLabel(),
		"fields": values,
	}
}

// SerializeObjects serializes a list of objects.  The result is never
// nil, so an empty result encodes as an empty list.
func SerializeObjects(objs []*model.Object, fields []string) []interface{} {
	out := make([]interface{}, len(objs))
	for i, o := range objs {
		out[i] = SerializeObject(o, fields)
	}
	return out
}
