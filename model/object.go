// Copyright 2015 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package model

// Object is one stored instance of a model.
type Object struct {
	Model *Model

	// PK is the primary key: an int64 for relational objects, or an
	// encoded key string for datastore objects.  It is nil for
	// objects that have not been saved yet.
	PK interface{}

	// Values holds field values keyed by field name.  The primary
	// key field, if any, is not included.  To-one fields hold the
	// related primary key and to-many fields hold a slice of them.
	Values map[string]interface{}
}

// NewObject creates an unsaved object with no values.
func NewObject(m *Model) *Object {
	return &Object{Model: m, Values: make(map[string]interface{})}
}

// Get returns a field value.  The name "pk" returns the primary key.
func (o *Object) Get(name string) interface{} {
	if name == "pk" || (o.Model != nil && o.Model.PK() != nil && o.Model.PK().Name == name) {
		return o.PK
	}
	return o.Values[name]
}

// Set changes a field value.
func (o *Object) Set(name string, value interface{}) {
	if o.Values == nil {
		o.Values = make(map[string]interface{})
	}
	o.Values[name] = value
}

// Copy returns a shallow copy of the object with its own value map.
func (o *Object) Copy() *Object {
	values := make(map[string]interface{}, len(o.Values))
	for k, v := range o.Values {
		values[k] = v
	}
	return &Object{Model: o.Model, PK: o.PK, Values: values}
}

// String returns a human-readable label for the object: the value of
// its first non-empty string field, or "<Name> object".
func (o *Object) String() string {
	if o.Model == nil {
		return "object"
	}
	for _, f := range o.Model.Fields {
		if f.Kind() != StringKind {
			continue
		}
		if s, ok := o.Values[f.Name].(string); ok && s != "" {
			return s
		}
	}
	return o.Model.Name + " object"
}
