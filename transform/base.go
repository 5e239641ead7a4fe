// Copyright 2015 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

// Package transform renders model and form definitions as client-side
// schema descriptions.  A Family knows how to render the fields of one
// kind of model (relational or datastore), keyed by field class name;
// a FormTransformer renders forms.  Field classes nothing is
// registered for are skipped with a warning.
package transform

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"

	"github.com/diffeo/go-modelrest/model"
	"github.com/diffeo/go-modelrest/serialization"
	"github.com/sirupsen/logrus"
)

// ErrAlreadyRegistered is returned when registering a class that
// already has a transformation.
type ErrAlreadyRegistered struct {
	Class string
}

func (e ErrAlreadyRegistered) Error() string {
	return fmt.Sprintf("A transformation for %s is already registered", e.Class)
}

// ErrNotRegistered is returned when unregistering a class that has no
// transformation.
type ErrNotRegistered struct {
	Class string
}

func (e ErrNotRegistered) Error() string {
	return fmt.Sprintf("No transformation for %s is registered", e.Class)
}

// Record kinds of generated fields.
const (
	RecordAttr   = "SC.Record.attr"
	RecordToOne  = "SC.Record.toOne"
	RecordToMany = "SC.Record.toMany"
)

type notProvided struct{}

// NotProvided is the value attribute lookups return for attributes
// that were never set, such as a missing default.  It is never
// rendered.
var NotProvided interface{} = notProvided{}

// Attr maps one source attribute, named the Python way
// ("max_length"), to an output attribute ("maxLength").  If To is
// empty it is the lower-camel-cased source name.  Values equal to
// Ignore are left out; a nil Ignore leaves out nil values.
type Attr struct {
	From   string
	To     string
	Ignore interface{}
}

// Getter looks up an attribute by its source name.  It returns false
// if the attribute does not exist at all.
type Getter func(name string) (interface{}, bool)

// Collect looks up each of attrs through get and returns the ones
// that are not ignored.  owner names the thing being rendered, for
// logging.
func Collect(get Getter, attrs []Attr, owner string) map[string]interface{} {
	out := make(map[string]interface{})
	for _, a := range attrs {
		to := a.To
		if to == "" {
			to = model.LCamelize(a.From)
		}
		v, ok := get(a.From)
		if !ok {
			logrus.WithFields(logrus.Fields{
				"owner":     owner,
				"attribute": a.From,
			}).Debug("no such attribute")
			continue
		}
		if v == NotProvided || reflect.DeepEqual(v, a.Ignore) {
			continue
		}
		out[to] = v
	}
	return out
}

// Extras converts a list of source attribute names to Attrs that
// ignore the given value.
func Extras(names []string, ignore interface{}) []Attr {
	attrs := make([]Attr, len(names))
	for i, name := range names {
		attrs[i] = Attr{From: name, Ignore: ignore}
	}
	return attrs
}

// FieldData is the rendering of one model field.
type FieldData struct {
	Name   string
	Record string
	JSType string

	// Comments is the doc comment body, starting with an "@type"
	// line.
	Comments string

	// Attributes is a JSON object literal.
	Attributes string
}

// MetaOption is one rendered model option.  Value is JSON text.
type MetaOption struct {
	Name  string
	Value string
}

// ModelData is the rendering of a whole model.
type ModelData struct {
	Fields []FieldData
	Meta   []MetaOption
}

// Subject is what a transformation renders: a forward field, or, if
// Relation is set, the reverse side of a relationship another model
// declares.
type Subject struct {
	Field    *model.Field
	Relation *model.Relation
	Entry    Entry
}

// Reverse returns true when rendering the reverse side of a
// relationship.
func (s Subject) Reverse() bool {
	return s.Relation != nil
}

// Transformation renders a subject.  It returns false if the subject
// should not appear in the output at all.
type Transformation func(s Subject) (FieldData, bool, error)

// Entry is a registered field class.
type Entry struct {
	Transformation Transformation

	// AcceptableType describes the values the field holds, for the
	// "@type" comment.
	AcceptableType string

	// ExtraAttributes are class-specific source attributes to add
	// to the rendered attributes.
	ExtraAttributes []string
}

// Family is a registry of field transformations for one kind of model.
type Family struct {
	// Name is reported as the models' "transformedFrom" option.
	Name string

	// Default is used for classes registered without their own
	// transformation.
	Default Transformation

	// ForwardFields lists the fields a model declares, in output
	// order.
	ForwardFields func(m *model.Model) []*model.Field

	// ReverseFields lists the relationships pointing at a model.
	ReverseFields func(m *model.Model) []*model.Relation

	// Meta produces the model options.
	Meta func(m *model.Model) map[string]interface{}

	lock    sync.RWMutex
	forward map[string]Entry
	reverse map[string]Entry
}

func newFamily(name string) *Family {
	return &Family{
		Name:    name,
		forward: make(map[string]Entry),
		reverse: make(map[string]Entry),
	}
}

func (fam *Family) register(table map[string]Entry, class, acceptableType string, extras []string, t Transformation) error {
	fam.lock.Lock()
	defer fam.lock.Unlock()
	if _, present := table[class]; present {
		return ErrAlreadyRegistered{Class: class}
	}
	if t == nil {
		t = fam.Default
	}
	table[class] = Entry{Transformation: t, AcceptableType: acceptableType, ExtraAttributes: extras}
	return nil
}

func (fam *Family) unregister(table map[string]Entry, class string) error {
	fam.lock.Lock()
	defer fam.lock.Unlock()
	if _, present := table[class]; !present {
		return ErrNotRegistered{Class: class}
	}
	delete(table, class)
	return nil
}

// Register adds a transformation for a forward field class.  A nil
// transformation uses the family default.
func (fam *Family) Register(class, acceptableType string, extras []string, t Transformation) error {
	return fam.register(fam.forward, class, acceptableType, extras, t)
}

// RegisterReverse adds a transformation for the reverse side of a
// relationship class.
func (fam *Family) RegisterReverse(class, acceptableType string, extras []string, t Transformation) error {
	return fam.register(fam.reverse, class, acceptableType, extras, t)
}

// Unregister removes the transformation for a forward field class.
func (fam *Family) Unregister(class string) error {
	return fam.unregister(fam.forward, class)
}

// UnregisterReverse removes the transformation for a reverse
// relationship class.
func (fam *Family) UnregisterReverse(class string) error {
	return fam.unregister(fam.reverse, class)
}

func (fam *Family) lookup(table map[string]Entry, class string) (Entry, bool) {
	fam.lock.RLock()
	defer fam.lock.RUnlock()
	entry, ok := table[class]
	return entry, ok
}

func (fam *Family) punt(m *model.Model, name, class string) {
	logrus.WithFields(logrus.Fields{
		"model": m.Label(),
		"field": name,
		"class": class,
	}).Warn("no transformation for field class, skipping")
}

// GenerateFields renders the forward fields and then the reverse
// relationships of m.
func (fam *Family) GenerateFields(m *model.Model) ([]FieldData, error) {
	var fields []FieldData
	add := func(s Subject) error {
		data, ok, err := s.Entry.Transformation(s)
		if err != nil {
			return err
		}
		if ok {
			fields = append(fields, data)
		}
		return nil
	}
	for _, f := range fam.ForwardFields(m) {
		entry, ok := fam.lookup(fam.forward, f.Class)
		if !ok {
			fam.punt(m, f.Name, f.Class)
			continue
		}
		if err := add(Subject{Field: f, Entry: entry}); err != nil {
			return nil, err
		}
	}
	if fam.ReverseFields != nil {
		for _, r := range fam.ReverseFields(m) {
			entry, ok := fam.lookup(fam.reverse, r.Class())
			if !ok {
				fam.punt(m, r.AccessorName(), r.Class())
				continue
			}
			if err := add(Subject{Field: r.Field, Relation: r, Entry: entry}); err != nil {
				return nil, err
			}
		}
	}
	return fields, nil
}

// ModelData renders a model's fields and its options, sorted by
// option name.
func (fam *Family) ModelData(m *model.Model) (ModelData, error) {
	fields, err := fam.GenerateFields(m)
	if err != nil {
		return ModelData{}, err
	}
	data := ModelData{Fields: fields}
	meta := fam.Meta(m)
	names := make([]string, 0, len(meta))
	for name := range meta {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		value, err := serialization.CompactJSON(meta[name])
		if err != nil {
			return ModelData{}, err
		}
		data.Meta = append(data.Meta, MetaOption{Name: name, Value: value})
	}
	return data, nil
}

// fieldData assembles the common parts of a rendered field.
func fieldData(name, record, jsType string, comments []string, attrs map[string]interface{}) (FieldData, error) {
	text, err := serialization.CompactJSON(attrs)
	if err != nil {
		return FieldData{}, err
	}
	return FieldData{
		Name:       name,
		Record:     record,
		JSType:     jsType,
		Comments:   strings.Join(comments, "\n\n"),
		Attributes: text,
	}, nil
}

// For returns the family that renders m.
func For(m *model.Model) *Family {
	if m.Datastore {
		return AppEngine
	}
	return Django
}

// Render renders m with its family.
func Render(m *model.Model) (ModelData, error) {
	return For(m).ModelData(m)
}
