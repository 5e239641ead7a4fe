// Copyright 2015 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package sqlstore

import (
	"bytes"
	"fmt"
	"time"

	"github.com/diffeo/go-modelrest/model"
	"github.com/diffeo/go-modelrest/serialization"
)

// FieldError describes a query that names a field or lookup the model
// does not have, or compares a field with a value it cannot hold.
type FieldError struct {
	Message string
}

func (e FieldError) Error() string {
	return e.Message
}

// ErrDoesNotExist is returned when a single object was asked for and
// none matched.
type ErrDoesNotExist struct {
	Model *model.Model
}

func (e ErrDoesNotExist) Error() string {
	return e.Model.Name + " matching query does not exist."
}

// columnValue converts a field value into what is stored in its
// column.
func columnValue(f *model.Field, v interface{}) (interface{}, error) {
	v, err := f.Coerce(v)
	if err != nil || v == nil {
		return v, err
	}
	switch f.Kind() {
	case model.DateKind, model.DateTimeKind, model.TimeKind:
		return model.FormatTime(f.Kind(), v.(time.Time)), nil
	case model.ToOneKind:
		return keyValue(f.RelatedModel(), v)
	case model.ListKind:
		var buf bytes.Buffer
		if err := serialization.EncodeCBOR(&buf, v); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	}
	return v, nil
}

// keyValue converts a primary key of m to its stored form.
func keyValue(m *model.Model, v interface{}) (interface{}, error) {
	if m != nil {
		if pk := m.PK(); pk != nil && pk.Kind() != model.IntegerKind {
			return columnValue(pk, v)
		}
	}
	if i, ok := model.ToInt64(v); ok {
		return i, nil
	}
	return nil, FieldError{fmt.Sprintf("Primary key expected a number but got '%v'.", v)}
}

// fieldValue converts a value scanned from a column back into the
// field's Go type.
func fieldValue(f *model.Field, raw interface{}) (interface{}, error) {
	if raw == nil {
		return nil, nil
	}
	if f.Kind() == model.ListKind {
		var b []byte
		switch r := raw.(type) {
		case []byte:
			b = r
		case string:
			b = []byte(r)
		default:
			return nil, fmt.Errorf("field %q: cannot decode %T as a list", f.Name, raw)
		}
		if len(b) == 0 {
			return []interface{}{}, nil
		}
		v, err := serialization.DecodeCBOR(b)
		if err != nil {
			return nil, err
		}
		return f.Coerce(v)
	}
	if f.Kind() == model.ToOneKind {
		if rm := f.RelatedModel(); rm != nil && rm.PK() != nil {
			return fieldValue(rm.PK(), raw)
		}
	}
	return f.Coerce(raw)
}
