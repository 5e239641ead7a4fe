// Copyright 2015 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package model

import (
	"strings"
)

// Kind is the storage category of a field class.  Many field classes
// share a kind: CharField, SlugField and EmailProperty are all strings.
type Kind int

const (
	// InvalidKind is returned for field classes nothing knows about.
	InvalidKind Kind = iota
	StringKind
	TextKind
	IntegerKind
	FloatKind
	DecimalKind
	BooleanKind
	DateKind
	DateTimeKind
	TimeKind
	// ToOneKind fields hold the primary key of a related object.
	ToOneKind
	// ToManyKind fields hold a list of related primary keys.
	ToManyKind
	// ListKind fields hold a list of plain values.
	ListKind
	BytesKind
	// UserKind fields hold a user name.
	UserKind
)

var kindNames = map[Kind]string{
	InvalidKind:  "invalid",
	StringKind:   "string",
	TextKind:     "text",
	IntegerKind:  "integer",
	FloatKind:    "float",
	DecimalKind:  "decimal",
	BooleanKind:  "boolean",
	DateKind:     "date",
	DateTimeKind: "datetime",
	TimeKind:     "time",
	ToOneKind:    "toOne",
	ToManyKind:   "toMany",
	ListKind:     "list",
	BytesKind:    "bytes",
	UserKind:     "user",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "invalid"
}

// classKinds maps field class names, from both the relational and the
// datastore families, to their storage kind.
var classKinds = map[string]Kind{
	// relational
	"AutoField":                  IntegerKind,
	"CharField":                  StringKind,
	"CommaSeparatedIntegerField": StringKind,
	"EmailField":                 StringKind,
	"FileField":                  StringKind,
	"FilePathField":              StringKind,
	"ImageField":                 StringKind,
	"IPAddressField":             StringKind,
	"SlugField":                  StringKind,
	"URLField":                   StringKind,
	"XMLField":                   TextKind,
	"TextField":                  TextKind,
	"SmallIntegerField":          IntegerKind,
	"IntegerField":               IntegerKind,
	"PositiveIntegerField":       IntegerKind,
	"PositiveSmallIntegerField":  IntegerKind,
	"FloatField":                 FloatKind,
	"DecimalField":               DecimalKind,
	"DateField":                  DateKind,
	"DateTimeField":              DateTimeKind,
	"TimeField":                  TimeKind,
	"BooleanField":               BooleanKind,
	"NullBooleanField":           BooleanKind,
	"ForeignKey":                 ToOneKind,
	"OneToOneField":              ToOneKind,
	"ManyToManyField":            ToManyKind,

	// datastore
	"StringProperty":        StringKind,
	"CategoryProperty":      StringKind,
	"EmailProperty":         StringKind,
	"LinkProperty":          StringKind,
	"PhoneNumberProperty":   StringKind,
	"PostalAddressProperty": StringKind,
	"GeoPtProperty":         StringKind,
	"IMProperty":            StringKind,
	"TextProperty":          TextKind,
	"UserProperty":          UserKind,
	"FloatProperty":         FloatKind,
	"IntegerProperty":       IntegerKind,
	"RatingProperty":        IntegerKind,
	"DateProperty":          DateKind,
	"DateTimeProperty":      DateTimeKind,
	"TimeProperty":          TimeKind,
	"BooleanProperty":       BooleanKind,
	"StringListProperty":    ListKind,
	"ListProperty":          ListKind,
	"ByteStringProperty":    BytesKind,
	"BlobProperty":          BytesKind,
	"ReferenceProperty":     ToOneKind,
	"SelfReferenceProperty": ToOneKind,
}

// KindOf returns the storage kind for a field class name, or
// InvalidKind if the class is unknown.
func KindOf(class string) Kind {
	return classKinds[class]
}

// RegisterClass adds a custom field class with the given storage kind.
// It is meant to be called from package init functions.
func RegisterClass(class string, kind Kind) {
	classKinds[class] = kind
}

// Choice is one permitted value of a field, with its human-readable
// label.
type Choice struct {
	Value interface{}
	Label string
}

// Field describes a single field of a model.  Field values are
// normally given as composite literals; the zero value of every flag
// matches the default of the corresponding field class.
type Field struct {
	// Name is the attribute name of the field, as it appears in
	// request data and serialized objects.
	Name string

	// Class is the field class name, for instance "CharField" or
	// "StringProperty".
	Class string

	// Column is the relational column name.  It defaults to Name,
	// or Name+"_id" for to-one relationships.
	Column string

	// VerboseName defaults to Name with underscores replaced by
	// spaces, except on datastore models.
	VerboseName string
	HelpText    string

	PrimaryKey bool
	Unique     bool
	Blank      bool
	Null       bool
	DBIndex    bool

	// ReadOnly marks fields that cannot be edited through forms.
	ReadOnly bool

	UniqueForDate  string
	UniqueForMonth string
	UniqueForYear  string

	// Required and Unindexed are the datastore spellings of field
	// constraints; Required is the inverse of Blank.
	Required  bool
	Unindexed bool
	Multiline bool

	AutoNow    bool
	AutoNowAdd bool

	MaxLength     int
	MaxDigits     int
	DecimalPlaces int

	// Default is the value used when an object is created without
	// this field.  DefaultFunc, if set, takes precedence and is
	// called for each new object.
	Default     interface{}
	DefaultFunc func() interface{}

	Choices []Choice

	// Related is the label of the related model, "app.Model", for
	// relationship fields.  The label "self" refers to the model
	// declaring the field.
	Related string

	// RelatedName names the reverse accessor on the related model.
	// It defaults to the lower-cased model name plus "_set".
	RelatedName string

	// Attrs holds class-specific attributes, such as "upload_to"
	// or "verify_exists", keyed by their Python-style names.
	Attrs map[string]interface{}

	model   *Model
	related *Model
}

// Kind returns the storage kind of the field's class.
func (f *Field) Kind() Kind {
	return KindOf(f.Class)
}

// Model returns the model that declares this field.
func (f *Field) Model() *Model {
	return f.model
}

// RelatedModel returns the resolved target of a relationship field,
// or nil if the field is not a relationship or the registry has not
// resolved it yet.
func (f *Field) RelatedModel() *Model {
	return f.related
}

// IsRelation returns true for to-one and to-many fields.
func (f *Field) IsRelation() bool {
	k := f.Kind()
	return k == ToOneKind || k == ToManyKind
}

// IsEditable returns true if forms should accept input for this field.
// Primary keys and automatically-set timestamps are never editable.
func (f *Field) IsEditable() bool {
	return !f.ReadOnly && !f.PrimaryKey && !f.AutoNow && !f.AutoNowAdd
}

// IsRequired returns true if a form must supply a non-empty value for
// this field.
func (f *Field) IsRequired() bool {
	if f.model != nil && f.model.Datastore {
		return f.Required
	}
	return !f.Blank
}

// IsIndexed returns true if queries may filter on this field.
func (f *Field) IsIndexed() bool {
	if f.model != nil && f.model.Datastore {
		switch f.Class {
		case "TextProperty", "BlobProperty":
			return false
		}
		return !f.Unindexed
	}
	return true
}

// HasDefault returns true if the field has a default value.
func (f *Field) HasDefault() bool {
	return f.DefaultFunc != nil || f.Default != nil
}

// DefaultValue returns the field's default value, calling DefaultFunc
// if it is set.
func (f *Field) DefaultValue() interface{} {
	if f.DefaultFunc != nil {
		return f.DefaultFunc()
	}
	return f.Default
}

// Attr returns a class-specific attribute and whether it was set.
func (f *Field) Attr(name string) (interface{}, bool) {
	v, ok := f.Attrs[name]
	return v, ok
}

// ChoiceValues returns just the values of the field's choices.
func (f *Field) ChoiceValues() []interface{} {
	values := make([]interface{}, len(f.Choices))
	for i, c := range f.Choices {
		values[i] = c.Value
	}
	return values
}

func (f *Field) prepare(m *Model) {
	f.model = m
	if f.VerboseName == "" && !m.Datastore {
		f.VerboseName = strings.Replace(f.Name, "_", " ", -1)
	}
	if f.Column == "" {
		f.Column = f.Name
		if f.Kind() == ToOneKind && !m.Datastore {
			f.Column = f.Name + "_id"
		}
	}
}
