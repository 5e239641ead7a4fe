// Copyright 2015 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

// Package model describes application models: their fields, their
// relationships to each other, and the applications that own them.
// Both the relational store and the datastore read their schema from
// here, as do the forms, the REST resources, and the schema
// transformers.
package model

import (
	"fmt"
	"strings"
)

// Model describes one persistent object type.
type Model struct {
	// App is the label of the owning application, e.g. "polls".
	App string

	// Name is the model's class name, e.g. "Poll".
	Name string

	// Datastore marks models kept in the entity datastore rather
	// than the relational store.  Datastore models have no primary
	// key field; their objects are identified by encoded keys.
	Datastore bool

	VerboseName        string
	VerboseNamePlural  string
	Ordering           []string
	GetLatestBy        string
	OrderWithRespectTo string
	UniqueTogether     [][]string

	// Table is the relational table name; it defaults to
	// "app_modulename".
	Table string

	Fields []*Field

	related  []*Relation
	prepared bool
}

// Label returns "app.Name", which is how relationship fields name
// their targets.
func (m *Model) Label() string {
	return m.App + "." + m.Name
}

// ModuleName returns the lower-cased model name, e.g. "poll".
func (m *Model) ModuleName() string {
	return strings.ToLower(m.Name)
}

// ObjectLabel returns "app.modulename", as serialized objects report
// their model.
func (m *Model) ObjectLabel() string {
	return m.App + "." + m.ModuleName()
}

func (m *Model) String() string {
	return m.Label()
}

// Field finds a field by name.  The name "pk" finds the primary key.
func (m *Model) Field(name string) (*Field, bool) {
	if name == "pk" {
		f := m.PK()
		return f, f != nil
	}
	for _, f := range m.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return nil, false
}

// PK returns the primary key field, or nil for datastore models.
func (m *Model) PK() *Field {
	for _, f := range m.Fields {
		if f.PrimaryKey {
			return f
		}
	}
	return nil
}

// LocalFields returns the fields stored directly in the model's own
// table, that is, everything except many-to-many fields.
func (m *Model) LocalFields() []*Field {
	var fields []*Field
	for _, f := range m.Fields {
		if f.Kind() != ToManyKind {
			fields = append(fields, f)
		}
	}
	return fields
}

// ManyToMany returns the many-to-many fields of the model.
func (m *Model) ManyToMany() []*Field {
	var fields []*Field
	for _, f := range m.Fields {
		if f.Kind() == ToManyKind {
			fields = append(fields, f)
		}
	}
	return fields
}

// FieldNames returns the names of all non-primary-key fields.
func (m *Model) FieldNames() []string {
	var names []string
	for _, f := range m.Fields {
		if !f.PrimaryKey {
			names = append(names, f.Name)
		}
	}
	return names
}

// RelatedObjects returns the relationships other models declare
// pointing at this one.  It is populated when the registry resolves.
func (m *Model) RelatedObjects() []*Relation {
	return m.related
}

// prepare fills in defaults.  It is idempotent.
func (m *Model) prepare() error {
	if m.prepared {
		return nil
	}
	if m.App == "" || m.Name == "" {
		return fmt.Errorf("model %q must have an app label and a name", m.Label())
	}
	if m.VerboseName == "" {
		m.VerboseName = SplitWords(m.Name)
	}
	if m.VerboseNamePlural == "" {
		m.VerboseNamePlural = m.VerboseName + "s"
	}
	if m.Table == "" {
		m.Table = m.App + "_" + m.ModuleName()
	}
	if !m.Datastore && m.PK() == nil {
		id := &Field{Name: "id", Class: "AutoField", PrimaryKey: true, Blank: true}
		m.Fields = append([]*Field{id}, m.Fields...)
	}
	seen := make(map[string]bool)
	for _, f := range m.Fields {
		if f.Name == "" || f.Name == "pk" {
			return fmt.Errorf("model %v has a field with invalid name %q", m, f.Name)
		}
		if seen[f.Name] {
			return fmt.Errorf("model %v has duplicate field %q", m, f.Name)
		}
		seen[f.Name] = true
		if m.Datastore && f.PrimaryKey {
			return fmt.Errorf("datastore model %v cannot declare primary key %q", m, f.Name)
		}
		f.prepare(m)
	}
	m.prepared = true
	return nil
}

// Relation is the reverse side of a relationship field, as seen from
// the related model.
type Relation struct {
	// Model is the model that declares Field.
	Model *Model

	// Field is the forward relationship field.
	Field *Field
}

// AccessorName returns the name of the reverse accessor: the field's
// RelatedName if set, the lower-cased model name for one-to-one
// fields, and the lower-cased model name plus "_set" otherwise.
func (r *Relation) AccessorName() string {
	if r.Field.RelatedName != "" {
		return r.Field.RelatedName
	}
	if r.Field.Class == "OneToOneField" {
		return r.Model.ModuleName()
	}
	return r.Model.ModuleName() + "_set"
}

// Class returns the field class name of the reverse side.  Datastore
// relationships report the synthetic "_ReverseReferenceProperty".
func (r *Relation) Class() string {
	if r.Model.Datastore {
		return "_ReverseReferenceProperty"
	}
	return r.Field.Class
}
