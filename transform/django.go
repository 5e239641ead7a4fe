// Copyright 2015 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package transform

import (
	"github.com/diffeo/go-modelrest/model"
)

// Django renders relational models.
var Django = NewDjango()

var djangoAttrs = []Attr{
	{From: "name", To: "key", Ignore: NotProvided},
	{From: "editable", To: "isEditable", Ignore: NotProvided},
	{From: "default", To: "defaultValue", Ignore: NotProvided},
	{From: "db_index", To: "hasServerIndex", Ignore: NotProvided},
	{From: "verbose_name", To: "verboseName", Ignore: NotProvided},
	{From: "unique", To: "unique"},
	{From: "unique_for_date", To: "uniqueForDate"},
	{From: "unique_for_month", To: "uniqueForMonth"},
	{From: "unique_for_year", To: "uniqueForYear"},
	{From: "choices", To: "choices", Ignore: []interface{}{}},
}

// djangoComments adds the field's help text after the type line.
func djangoComments(s Subject, acceptable string) []string {
	comments := []string{"@type " + acceptable}
	if s.Field.HelpText != "" {
		comments = append(comments, s.Field.HelpText)
	}
	return comments
}

func djangoName(f *model.Field) string {
	if name := model.LCamelize(f.VerboseName); name != "" {
		return name
	}
	return model.LCamelize(f.Name)
}

func djangoAttributes(s Subject) map[string]interface{} {
	attrs := append(append([]Attr(nil), djangoAttrs...), Extras(s.Entry.ExtraAttributes, NotProvided)...)
	out := Collect(FieldGetter(s.Field), attrs, s.Field.Model().Label()+"."+s.Field.Name)
	out["fieldClass"] = s.Field.Class
	out["isRequired"] = !s.Field.Blank
	return out
}

// DjangoField renders a plain relational field.  Primary keys are not
// rendered.
func DjangoField(s Subject) (FieldData, bool, error) {
	if s.Field.PrimaryKey {
		return FieldData{}, false, nil
	}
	data, err := fieldData(djangoName(s.Field), RecordAttr, "Django."+s.Field.Class,
		djangoComments(s, s.Entry.AcceptableType), djangoAttributes(s))
	return data, err == nil, err
}

// relatedLabel names a model the way generated code refers to it,
// "App.VerboseName" camelized.
func relatedLabel(m *model.Model, name string) string {
	if m == nil {
		return ""
	}
	return model.Camelize(m.App) + "." + model.Camelize(name)
}

func djangoRelationship(s Subject, record string) (FieldData, bool, error) {
	var related *model.Model
	var name string
	var attrs map[string]interface{}
	if s.Reverse() {
		r := s.Relation
		related = r.Model
		name = model.LCamelize(r.AccessorName())
		attrs = Collect(FieldGetter(s.Field), Extras(s.Entry.ExtraAttributes, NotProvided), r.Model.Label())
		attrs["fieldClass"] = s.Field.Class
		attrs["isMaster"] = false
		attrs["key"] = r.AccessorName()
		attrs["inverse"] = djangoName(s.Field)
	} else {
		related = s.Field.RelatedModel()
		name = djangoName(s.Field)
		attrs = djangoAttributes(s)
		attrs["isMaster"] = true
		inverse := &model.Relation{Model: s.Field.Model(), Field: s.Field}
		attrs["inverse"] = model.LCamelize(inverse.AccessorName())
	}
	label := ""
	if related != nil {
		label = relatedLabel(related, related.VerboseName)
	}
	acceptable := label
	if record == RecordToMany {
		acceptable = "SC.RecordArray " + label
	}
	data, err := fieldData(name, record, "'"+label+"'", djangoComments(s, acceptable), attrs)
	return data, err == nil, err
}

// DjangoToOne renders foreign keys, one-to-one fields and the
// reverse side of one-to-one fields.
func DjangoToOne(s Subject) (FieldData, bool, error) {
	return djangoRelationship(s, RecordToOne)
}

// DjangoToMany renders many-to-many fields and the reverse side of
// foreign keys and many-to-many fields.
func DjangoToMany(s Subject) (FieldData, bool, error) {
	return djangoRelationship(s, RecordToMany)
}

func djangoForward(m *model.Model) []*model.Field {
	return append(m.LocalFields(), m.ManyToMany()...)
}

// djangoReverse lists reverse relationships with the many-to-many
// ones last.
func djangoReverse(m *model.Model) []*model.Relation {
	var single, multiple []*model.Relation
	for _, r := range m.RelatedObjects() {
		if r.Field.Kind() == model.ToManyKind {
			multiple = append(multiple, r)
		} else {
			single = append(single, r)
		}
	}
	return append(single, multiple...)
}

func djangoMeta(m *model.Model) map[string]interface{} {
	ordering := make([]interface{}, len(m.Ordering))
	for i, o := range m.Ordering {
		ordering[i] = o
	}
	unique := make([]interface{}, len(m.UniqueTogether))
	for i, names := range m.UniqueTogether {
		unique[i] = names
	}
	meta := map[string]interface{}{
		"transformedFrom":   "Django",
		"modelClass":        m.ObjectLabel(),
		"verboseName":       model.Title(m.VerboseName),
		"verboseNamePlural": model.Title(m.VerboseNamePlural),
		"ordering":          ordering,
		"uniqueTogether":    unique,
	}
	if m.GetLatestBy != "" {
		meta["getLatestBy"] = m.GetLatestBy
	}
	if m.OrderWithRespectTo != "" {
		meta["orderWithRespectTo"] = m.OrderWithRespectTo
	}
	return meta
}

// NewDjango creates the relational family with every built-in field
// class registered.
func NewDjango() *Family {
	fam := newFamily("Django")
	fam.Default = DjangoField
	fam.ForwardFields = djangoForward
	fam.ReverseFields = djangoReverse
	fam.Meta = djangoMeta

	for _, r := range []struct {
		class, acceptable string
		extras            []string
		t                 Transformation
	}{
		{"TextField", "String", nil, nil},
		{"CharField", "String", []string{"max_length"}, nil},
		{"EmailField", "String", []string{"max_length"}, nil},
		{"SlugField", "String", []string{"max_length"}, nil},
		{"IPAddressField", "String", []string{"max_length"}, nil},
		{"URLField", "String", []string{"verify_exists"}, nil},
		{"XMLField", "String", []string{"max_length", "schema_path"}, nil},
		{"CommaSeparatedIntegerField", "String of comma-separated integers", []string{"max_length"}, nil},
		{"FileField", "String", []string{"max_length", "upload_to"}, nil},
		{"ImageField", "String", []string{"max_length", "upload_to", "height_field", "width_field"}, nil},
		{"FilePathField", "String", []string{"max_length", "path", "match", "recursive"}, nil},

		{"AutoField", "Integer", nil, nil},
		{"SmallIntegerField", "Integer", nil, nil},
		{"IntegerField", "Integer", nil, nil},
		{"PositiveIntegerField", "Positive integer", nil, nil},
		{"PositiveSmallIntegerField", "Positive integer", nil, nil},
		{"FloatField", "Number", nil, nil},
		{"DecimalField", "Number", []string{"max_digits", "decimal_places"}, nil},

		{"DateField", "Date", []string{"auto_now", "auto_now_add"}, nil},
		{"DateTimeField", "Date", []string{"auto_now", "auto_now_add"}, nil},
		{"TimeField", "Date", []string{"auto_now", "auto_now_add"}, nil},

		{"NullBooleanField", "Boolean", nil, nil},
		{"BooleanField", "Boolean", nil, nil},

		{"OneToOneField", "", nil, DjangoToOne},
		{"ForeignKey", "", nil, DjangoToOne},
		{"ManyToManyField", "", nil, DjangoToMany},
	} {
		if err := fam.Register(r.class, r.acceptable, r.extras, r.t); err != nil {
			panic(err)
		}
	}
	for class, t := range map[string]Transformation{
		"ForeignKey":      DjangoToMany,
		"ManyToManyField": DjangoToMany,
		"OneToOneField":   DjangoToOne,
	} {
		if err := fam.RegisterReverse(class, "", nil, t); err != nil {
			panic(err)
		}
	}
	return fam
}
