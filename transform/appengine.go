// Copyright 2015 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package transform

import (
	"fmt"

	"github.com/diffeo/go-modelrest/model"
)

// AppEngine renders datastore models.
var AppEngine = NewAppEngine()

var appEngineAttrs = []Attr{
	{From: "name", To: "key", Ignore: NotProvided},
	{From: "required", To: "isRequired", Ignore: NotProvided},
	{From: "indexed", To: "hasServerIndex", Ignore: NotProvided},
	{From: "choices", To: "choices"},
	{From: "default", To: "defaultValue"},
	{From: "verbose_name", To: "verboseName"},
}

func appEngineName(f *model.Field) string {
	if name := model.LCamelize(f.VerboseName); name != "" {
		return name
	}
	return model.LCamelize(f.Name)
}

func appEngineAttributes(s Subject) map[string]interface{} {
	attrs := append(append([]Attr(nil), appEngineAttrs...), Extras(s.Entry.ExtraAttributes, NotProvided)...)
	out := Collect(FieldGetter(s.Field), attrs, s.Field.Model().Label()+"."+s.Field.Name)
	out["fieldClass"] = s.Field.Class
	return out
}

func appEngineField(s Subject, acceptable string, attrs map[string]interface{}) (FieldData, bool, error) {
	data, err := fieldData(appEngineName(s.Field), RecordAttr, "AppEngine."+s.Field.Class,
		[]string{"@type " + acceptable}, attrs)
	return data, err == nil, err
}

// AppEngineField renders a plain datastore property.
func AppEngineField(s Subject) (FieldData, bool, error) {
	return appEngineField(s, s.Entry.AcceptableType, appEngineAttributes(s))
}

// AppEngineUnindexed renders properties the datastore can never
// index, whatever their settings say.
func AppEngineUnindexed(s Subject) (FieldData, bool, error) {
	attrs := appEngineAttributes(s)
	attrs["hasServerIndex"] = false
	return appEngineField(s, s.Entry.AcceptableType, attrs)
}

// AppEngineList renders list properties, naming the item type if the
// field declares one in its "item_type" attribute.
func AppEngineList(s Subject) (FieldData, bool, error) {
	acceptable := s.Entry.AcceptableType
	if item, ok := s.Field.Attr("item_type"); ok {
		acceptable = fmt.Sprintf("Array of %v", item)
	}
	return appEngineField(s, acceptable, appEngineAttributes(s))
}

// AppEngineRelationship renders reference properties and their
// reverse collections.
func AppEngineRelationship(s Subject) (FieldData, bool, error) {
	var related *model.Model
	var name, record string
	var attrs map[string]interface{}
	if s.Reverse() {
		r := s.Relation
		related = r.Model
		record = RecordToMany
		name = model.LCamelize(r.AccessorName())
		attrs = Collect(FieldGetter(s.Field), Extras(s.Entry.ExtraAttributes, NotProvided), r.Model.Label())
		attrs["fieldClass"] = r.Class()
		attrs["isMaster"] = false
		attrs["key"] = r.AccessorName()
		attrs["inverse"] = appEngineName(s.Field)
	} else {
		related = s.Field.RelatedModel()
		record = RecordToOne
		name = appEngineName(s.Field)
		attrs = appEngineAttributes(s)
		attrs["isMaster"] = true
		forward := &model.Relation{Model: s.Field.Model(), Field: s.Field}
		attrs["inverse"] = model.LCamelize(forward.AccessorName())
	}
	label := ""
	if related != nil {
		label = relatedLabel(related, related.ModuleName())
	}
	acceptable := label
	if record == RecordToMany {
		acceptable = "SC.RecordArray " + label
	}
	data, err := fieldData(name, record, "'"+label+"'", []string{"@type " + acceptable}, attrs)
	return data, err == nil, err
}

func appEngineForward(m *model.Model) []*model.Field {
	return m.Fields
}

// appEngineReverse skips reverse collections whose names clash with a
// declared property.
func appEngineReverse(m *model.Model) []*model.Relation {
	var relations []*model.Relation
	for _, r := range m.RelatedObjects() {
		if _, clash := m.Field(r.AccessorName()); clash {
			continue
		}
		relations = append(relations, r)
	}
	return relations
}

func appEngineMeta(m *model.Model) map[string]interface{} {
	return map[string]interface{}{
		"transformedFrom": "AppEngine",
		"modelClass":      m.ObjectLabel(),
		"verboseName":     model.Title(model.SplitWords(m.Name)),
	}
}

// NewAppEngine creates the datastore family with every built-in
// property class registered.
func NewAppEngine() *Family {
	fam := newFamily("AppEngine")
	fam.Default = AppEngineField
	fam.ForwardFields = appEngineForward
	fam.ReverseFields = appEngineReverse
	fam.Meta = appEngineMeta

	for _, r := range []struct {
		class, acceptable string
		extras            []string
		t                 Transformation
	}{
		{"StringProperty", "String", []string{"multiline"}, nil},
		{"UserProperty", "String", []string{"auto_current_user", "auto_current_user_add"}, nil},
		{"CategoryProperty", "String", nil, nil},
		{"EmailProperty", "String", nil, nil},
		{"LinkProperty", "String (fully qualified URL)", nil, nil},
		{"PhoneNumberProperty", "String", nil, nil},
		{"PostalAddressProperty", "String", nil, nil},
		{"GeoPtProperty", "String (latitude, longitude)", nil, nil},
		{"IMProperty", "String (protocol, handle)", nil, nil},
		{"TextProperty", "String", nil, AppEngineUnindexed},

		{"FloatProperty", "Number", nil, nil},
		{"IntegerProperty", "Number", nil, nil},
		{"RatingProperty", "Integer (0-100)", nil, nil},

		{"DateProperty", "Date", []string{"auto_now", "auto_now_add"}, nil},
		{"DateTimeProperty", "Date", []string{"auto_now", "auto_now_add"}, nil},
		{"TimeProperty", "Date", []string{"auto_now", "auto_now_add"}, nil},

		{"BooleanProperty", "Boolean", nil, nil},

		{"StringListProperty", "Array of Strings", nil, nil},
		{"ByteStringProperty", "Array of integers (0-255)", nil, nil},
		{"ListProperty", "Array of values", nil, AppEngineList},
		{"BlobProperty", "Array of integers (0-255)", nil, AppEngineUnindexed},

		{"ReferenceProperty", "", nil, AppEngineRelationship},
		{"SelfReferenceProperty", "", nil, AppEngineRelationship},
	} {
		if err := fam.Register(r.class, r.acceptable, r.extras, r.t); err != nil {
			panic(err)
		}
	}
	if err := fam.RegisterReverse("_ReverseReferenceProperty", "", nil, AppEngineRelationship); err != nil {
		panic(err)
	}
	return fam
}
