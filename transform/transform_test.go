// Copyright 2015 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package transform

import (
	"testing"

	"github.com/diffeo/go-modelrest/forms"
	"github.com/diffeo/go-modelrest/model"
	"github.com/diffeo/go-modelrest/serialization"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pollApp(t *testing.T) (*model.Model, *model.Model) {
	poll := &model.Model{Name: "Poll", Ordering: []string{"-pub_date"}, Fields: []*model.Field{
		{Name: "question", Class: "CharField", MaxLength: 255, HelpText: "What to ask."},
		{Name: "slug", Class: "SlugField", Unique: true, MaxLength: 50},
		{Name: "pub_date", Class: "DateTimeField", VerboseName: "date published", AutoNowAdd: true},
		{Name: "tags", Class: "ManyToManyField", Related: "Tag", Blank: true},
		{Name: "shape", Class: "PolygonField"},
	}}
	choice := &model.Model{Name: "Choice", Fields: []*model.Field{
		{Name: "poll", Class: "ForeignKey", Related: "Poll"},
		{Name: "answer", Class: "CharField", MaxLength: 255},
		{Name: "votes", Class: "IntegerField", Default: int64(0)},
	}}
	tag := &model.Model{Name: "Tag", Fields: []*model.Field{
		{Name: "name", Class: "CharField", MaxLength: 20},
	}}
	reg := model.NewRegistry()
	require.NoError(t, reg.Register(&model.App{Label: "polls", Models: []*model.Model{poll, choice, tag}}))
	require.NoError(t, reg.Resolve())
	return poll, choice
}

func decodeAttrs(t *testing.T, data FieldData) map[string]interface{} {
	v, err := serialization.DecodeJSON([]byte(data.Attributes))
	require.NoError(t, err)
	m, ok := v.(map[string]interface{})
	require.True(t, ok, "attributes %q", data.Attributes)
	return m
}

func fieldsByName(fields []FieldData) map[string]FieldData {
	out := make(map[string]FieldData)
	for _, f := range fields {
		out[f.Name] = f
	}
	return out
}

func TestDjangoFields(t *testing.T) {
	poll, _ := pollApp(t)
	hook := test.NewGlobal()
	defer hook.Reset()

	data, err := Render(poll)
	require.NoError(t, err)

	var names []string
	for _, f := range data.Fields {
		names = append(names, f.Name)
	}
	// no id, the unknown class is skipped, many-to-many comes after
	// local fields and reverse relations come last
	assert.Equal(t, []string{"question", "slug", "datePublished", "tags", "choiceSet"}, names)

	if assert.NotNil(t, hook.LastEntry()) {
		assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
		assert.Equal(t, "PolygonField", hook.LastEntry().Data["class"])
	}

	fields := fieldsByName(data.Fields)
	question := fields["question"]
	assert.Equal(t, RecordAttr, question.Record)
	assert.Equal(t, "Django.CharField", question.JSType)
	assert.Equal(t, "@type String\n\nWhat to ask.", question.Comments)
	assert.Equal(t, map[string]interface{}{
		"key":            "question",
		"isEditable":     true,
		"hasServerIndex": false,
		"verboseName":    "question",
		"unique":         false,
		"maxLength":      int64(255),
		"fieldClass":     "CharField",
		"isRequired":     true,
	}, decodeAttrs(t, question))

	pubDate := decodeAttrs(t, fields["datePublished"])
	assert.Equal(t, false, pubDate["isEditable"])
	assert.Equal(t, true, pubDate["autoNowAdd"])
	assert.Equal(t, false, pubDate["autoNow"])

	tags := fields["tags"]
	assert.Equal(t, RecordToMany, tags.Record)
	assert.Equal(t, "'Polls.Tag'", tags.JSType)
	assert.Equal(t, "@type SC.RecordArray Polls.Tag", tags.Comments)
	tagAttrs := decodeAttrs(t, tags)
	assert.Equal(t, true, tagAttrs["isMaster"])
	assert.Equal(t, "pollSet", tagAttrs["inverse"])
	assert.Equal(t, false, tagAttrs["isRequired"])

	choices := fields["choiceSet"]
	assert.Equal(t, RecordToMany, choices.Record)
	assert.Equal(t, "'Polls.Choice'", choices.JSType)
	assert.Equal(t, map[string]interface{}{
		"fieldClass": "ForeignKey",
		"isMaster":   false,
		"key":        "choice_set",
		"inverse":    "poll",
	}, decodeAttrs(t, choices))
}

func TestDjangoForeignKey(t *testing.T) {
	_, choice := pollApp(t)
	fields, err := Django.GenerateFields(choice)
	require.NoError(t, err)
	byName := fieldsByName(fields)

	poll := byName["poll"]
	assert.Equal(t, RecordToOne, poll.Record)
	assert.Equal(t, "'Polls.Poll'", poll.JSType)
	assert.Equal(t, "@type Polls.Poll", poll.Comments)
	attrs := decodeAttrs(t, poll)
	assert.Equal(t, true, attrs["isMaster"])
	assert.Equal(t, "choiceSet", attrs["inverse"])
	assert.Equal(t, "poll", attrs["key"])

	votes := decodeAttrs(t, byName["votes"])
	assert.Equal(t, int64(0), votes["defaultValue"])
	answer := decodeAttrs(t, byName["answer"])
	_, hasDefault := answer["defaultValue"]
	assert.False(t, hasDefault)
}

func TestDjangoMeta(t *testing.T) {
	poll, _ := pollApp(t)
	data, err := Render(poll)
	require.NoError(t, err)
	meta := make(map[string]string)
	var names []string
	for _, o := range data.Meta {
		meta[o.Name] = o.Value
		names = append(names, o.Name)
	}
	assert.Equal(t, []string{"modelClass", "ordering", "transformedFrom", "uniqueTogether",
		"verboseName", "verboseNamePlural"}, names)
	assert.Equal(t, `"Django"`, meta["transformedFrom"])
	assert.Equal(t, `"polls.poll"`, meta["modelClass"])
	assert.Equal(t, `"Poll"`, meta["verboseName"])
	assert.Equal(t, `"Polls"`, meta["verboseNamePlural"])
	assert.Equal(t, `["-pub_date"]`, meta["ordering"])
	assert.Equal(t, `[]`, meta["uniqueTogether"])
}

func TestRegistration(t *testing.T) {
	fam := NewDjango()
	assert.Equal(t, ErrAlreadyRegistered{Class: "CharField"}, fam.Register("CharField", "String", nil, nil))
	assert.NoError(t, fam.Unregister("CharField"))
	assert.Equal(t, ErrNotRegistered{Class: "CharField"}, fam.Unregister("CharField"))
	assert.NoError(t, fam.Register("CharField", "Text", nil, nil))
	assert.NoError(t, fam.UnregisterReverse("OneToOneField"))
	assert.Equal(t, ErrNotRegistered{Class: "OneToOneField"}, fam.UnregisterReverse("OneToOneField"))

	// the default family is a separate registry
	assert.Error(t, Django.Register("CharField", "String", nil, nil))
	_, choice := pollApp(t)
	fields, err := fam.GenerateFields(choice)
	require.NoError(t, err)
	assert.Equal(t, "@type Text", fieldsByName(fields)["answer"].Comments)
}

func guestbookApp(t *testing.T) (*model.Model, *model.Model) {
	book := &model.Model{Name: "Guestbook", Datastore: true, Fields: []*model.Field{
		{Name: "title", Class: "StringProperty", Required: true},
	}}
	greeting := &model.Model{Name: "Greeting", Datastore: true, Fields: []*model.Field{
		{Name: "author", Class: "UserProperty"},
		{Name: "content", Class: "TextProperty", Multiline: true},
		{Name: "rating", Class: "RatingProperty", Default: int64(50)},
		{Name: "date", Class: "DateTimeProperty", AutoNowAdd: true},
		{Name: "book", Class: "ReferenceProperty", Related: "Guestbook", RelatedName: "greetings"},
		{Name: "tags", Class: "ListProperty", Attrs: map[string]interface{}{"item_type": "Strings"}},
	}}
	reg := model.NewRegistry()
	require.NoError(t, reg.Register(&model.App{Label: "guestbook", Models: []*model.Model{book, greeting}}))
	require.NoError(t, reg.Resolve())
	return book, greeting
}

func TestAppEngineFields(t *testing.T) {
	book, greeting := guestbookApp(t)
	data, err := Render(greeting)
	require.NoError(t, err)
	fields := fieldsByName(data.Fields)

	content := fields["content"]
	assert.Equal(t, "AppEngine.TextProperty", content.JSType)
	assert.Equal(t, "@type String", content.Comments)
	assert.Equal(t, map[string]interface{}{
		"key":            "content",
		"isRequired":     false,
		"hasServerIndex": false,
		"fieldClass":     "TextProperty",
	}, decodeAttrs(t, content))

	rating := decodeAttrs(t, fields["rating"])
	assert.Equal(t, int64(50), rating["defaultValue"])
	assert.Equal(t, true, rating["hasServerIndex"])
	assert.Equal(t, "@type Integer (0-100)", fields["rating"].Comments)

	assert.Equal(t, "@type Array of Strings", fields["tags"].Comments)

	ref := fields["book"]
	assert.Equal(t, RecordToOne, ref.Record)
	assert.Equal(t, "'Guestbook.Guestbook'", ref.JSType)
	refAttrs := decodeAttrs(t, ref)
	assert.Equal(t, true, refAttrs["isMaster"])
	assert.Equal(t, "greetings", refAttrs["inverse"])

	data, err = Render(book)
	require.NoError(t, err)
	fields = fieldsByName(data.Fields)
	greetings := fields["greetings"]
	assert.Equal(t, RecordToMany, greetings.Record)
	assert.Equal(t, "'Guestbook.Greeting'", greetings.JSType)
	assert.Equal(t, "@type SC.RecordArray Guestbook.Greeting", greetings.Comments)
	assert.Equal(t, map[string]interface{}{
		"fieldClass": "_ReverseReferenceProperty",
		"isMaster":   false,
		"key":        "greetings",
		"inverse":    "book",
	}, decodeAttrs(t, greetings))

	require.Len(t, data.Meta, 3)
	assert.Equal(t, MetaOption{Name: "transformedFrom", Value: `"AppEngine"`}, data.Meta[1])
	assert.Equal(t, MetaOption{Name: "verboseName", Value: `"Guestbook"`}, data.Meta[2])
}

func TestFormRender(t *testing.T) {
	poll, choice := pollApp(t)
	mf := forms.NewModelForm(choice, nil)
	out, err := Forms.Render(&mf.Form, choiceSource{poll: {{Value: int64(1), Label: "Socks?"}}})
	require.NoError(t, err)

	assert.Equal(t, "ChoiceForm", out["formName"])
	assert.Nil(t, out["submitionURL"])
	assert.Nil(t, out["method"])
	fields := out["fields"].([]interface{})
	require.Len(t, fields, 3)

	pollField := fields[0].(map[string]interface{})
	assert.Equal(t, "poll", pollField["key"])
	assert.Equal(t, 0, pollField["fieldOrder"])
	assert.Equal(t, "Poll", pollField["title"])
	assert.Equal(t, "ModelChoiceField", pollField["fieldClass"])
	assert.Equal(t, "polls.poll", pollField["modelClass"])
	assert.Equal(t, "---------", pollField["emptyLabel"])
	assert.Equal(t, []interface{}{
		[]interface{}{"", "---------"},
		[]interface{}{int64(1), "Socks?"},
	}, pollField["choices"])
	assert.Equal(t, map[string]interface{}{
		"attributes":  map[string]interface{}{},
		"widgetClass": "Select",
	}, pollField["widget"])

	answer := fields[1].(map[string]interface{})
	assert.Equal(t, 255, answer["maxLength"])
	_, hasMin := answer["minLength"]
	assert.False(t, hasMin)
	_, hasHint := answer["hint"]
	assert.False(t, hasHint)
	assert.Equal(t, true, answer["isRequired"])

	votes := fields[2].(map[string]interface{})
	assert.Equal(t, int64(0), votes["defaultValue"])
}

func TestFormTitleFallback(t *testing.T) {
	form := &forms.Form{Name: "ContactForm", Fields: []*forms.Field{
		{Name: "sender_email", Class: "EmailField", Required: true},
		{Name: "secret", Class: "CharField", Widget: forms.Widget{Class: "PasswordInput",
			Extras: map[string]interface{}{"render_value": false}}},
		{Name: "odd", Class: "OddField"},
	}}
	out, err := Forms.Render(form, nil)
	require.NoError(t, err)
	fields := out["fields"].([]interface{})
	require.Len(t, fields, 2)
	email := fields[0].(map[string]interface{})
	assert.Equal(t, "Sender Email", email["title"])
	assert.Equal(t, "TextInput", email["widget"].(map[string]interface{})["widgetClass"])
	secret := fields[1].(map[string]interface{})
	assert.Equal(t, 1, secret["fieldOrder"])
	assert.Equal(t, map[string]interface{}{
		"attributes":  map[string]interface{}{},
		"renderValue": false,
		"widgetClass": "PasswordInput",
	}, secret["widget"])
}

func TestFormRegistration(t *testing.T) {
	ft := NewFormTransformer()
	assert.Equal(t, ErrAlreadyRegistered{Class: "TextInput"}, ft.RegisterWidget("TextInput", nil))
	assert.Equal(t, ErrAlreadyRegistered{Class: "CharField"}, ft.RegisterField("CharField", nil))
	assert.NoError(t, ft.UnregisterWidget("TextInput"))
	assert.Equal(t, ErrNotRegistered{Class: "TextInput"}, ft.UnregisterWidget("TextInput"))
	assert.NoError(t, ft.UnregisterField("CharField"))
	assert.Equal(t, ErrNotRegistered{Class: "CharField"}, ft.UnregisterField("CharField"))
}

type choiceSource map[*model.Model][]model.Choice

func (c choiceSource) Choices(m *model.Model) ([]model.Choice, error) {
	return c[m], nil
}
