// Copyright 2015 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package forms

import (
	"testing"
	"time"

	"github.com/diffeo/go-modelrest/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeChecker answers from fixed data: existing keys per model label,
// and values already taken per field name.
type fakeChecker struct {
	keys  map[string][]interface{}
	taken map[string]interface{}
}

func (c *fakeChecker) Exists(m *model.Model, pk interface{}) (bool, error) {
	for _, k := range c.keys[m.Label()] {
		if k == pk {
			return true, nil
		}
	}
	return false, nil
}

func (c *fakeChecker) Count(m *model.Model, match map[string]interface{}, exclude interface{}) (int, error) {
	for name, value := range match {
		if c.taken[name] != value {
			return 0, nil
		}
	}
	if exclude != nil {
		return 0, nil
	}
	return 1, nil
}

func pollModels(t *testing.T) (*model.Model, *model.Model) {
	poll := &model.Model{App: "polls", Name: "Poll", Fields: []*model.Field{
		{Name: "question", Class: "CharField", MaxLength: 20},
		{Name: "slug", Class: "SlugField", Unique: true},
		{Name: "author", Class: "ForeignKey", Related: "Author", Blank: true, Null: true},
		{Name: "pub_date", Class: "DateTimeField", AutoNowAdd: true},
		{Name: "votes", Class: "PositiveIntegerField", Default: int64(0), Blank: true},
		{Name: "color", Class: "CharField", MaxLength: 1, Blank: true,
			Choices: []model.Choice{{Value: "r", Label: "Red"}, {Value: "b", Label: "Blue"}}},
		{Name: "open", Class: "BooleanField", Default: true},
	}}
	author := &model.Model{App: "polls", Name: "Author", Fields: []*model.Field{
		{Name: "name", Class: "CharField", MaxLength: 30},
	}}
	reg := model.NewRegistry()
	require.NoError(t, reg.Register(&model.App{Label: "polls", Models: []*model.Model{poll, author}}))
	require.NoError(t, reg.Resolve())
	return poll, author
}

func TestFieldClean(t *testing.T) {
	for _, c := range []struct {
		field *Field
		in    interface{}
		out   interface{}
		msg   string
	}{
		{&Field{Class: "CharField", Required: true}, "", nil, MsgRequired},
		{&Field{Class: "CharField"}, nil, "", ""},
		{&Field{Class: "CharField", MaxLength: 3}, "abcd", nil,
			"Ensure this value has at most 3 characters (it has 4)."},
		{&Field{Class: "CharField"}, []interface{}{"one"}, "one", ""},
		{&Field{Class: "CharField"}, []interface{}{"a", "b"}, nil, MsgInvalid},
		{&Field{Class: "IntegerField"}, "42", int64(42), ""},
		{&Field{Class: "IntegerField"}, "4.5", nil, MsgInteger},
		{&Field{Class: "IntegerField", MinValue: Float(0)}, int64(-1), nil,
			"Ensure this value is greater than or equal to 0."},
		{&Field{Class: "FloatField"}, "2.5", 2.5, ""},
		{&Field{Class: "FloatField"}, "x", nil, MsgNumber},
		{&Field{Class: "DecimalField", MaxDigits: 4, DecimalPlaces: 2}, "12.34", 12.34, ""},
		{&Field{Class: "DecimalField", MaxDigits: 4, DecimalPlaces: 2}, "123.45", nil,
			"Ensure that there are no more than 4 digits in total."},
		{&Field{Class: "DecimalField", MaxDigits: 6, DecimalPlaces: 2}, "1.234", nil,
			"Ensure that there are no more than 2 decimal places."},
		{&Field{Class: "BooleanField"}, "false", false, ""},
		{&Field{Class: "BooleanField", Required: true}, "", nil, MsgRequired},
		{&Field{Class: "NullBooleanField"}, "2", true, ""},
		{&Field{Class: "NullBooleanField"}, "", nil, ""},
		{&Field{Class: "DateField"}, "2009-06-01", time.Date(2009, 6, 1, 0, 0, 0, 0, time.UTC), ""},
		{&Field{Class: "DateField"}, "June", nil, MsgDate},
		{&Field{Class: "DateTimeField", InputFormats: []string{"02.01.2006"}}, "01.06.2009",
			time.Date(2009, 6, 1, 0, 0, 0, 0, time.UTC), ""},
		{&Field{Class: "TimeField"}, "25:00", nil, MsgTime},
		{&Field{Class: "EmailField"}, " a@example.com ", "a@example.com", ""},
		{&Field{Class: "EmailField"}, "not an address", nil, MsgEmail},
		{&Field{Class: "URLField"}, "example.com/x", "http://example.com/x", ""},
		{&Field{Class: "URLField"}, "http://", nil, MsgURL},
		{&Field{Class: "IPAddressField"}, "10.0.0.1", "10.0.0.1", ""},
		{&Field{Class: "IPAddressField"}, "::1", nil, MsgIPAddress},
		{&Field{Class: "RegexField", Regex: slugRegexp, RegexMessage: MsgSlug}, "no spaces", nil, MsgSlug},
		{&Field{Class: "ChoiceField", Choices: []model.Choice{{Value: "r", Label: "Red"}}}, "g", nil,
			"Select a valid choice. g is not one of the available choices."},
		{&Field{Class: "TypedChoiceField", Choices: []model.Choice{{Value: int64(1), Label: "One"}}}, "1", int64(1), ""},
		{&Field{Class: "MultipleChoiceField", Choices: []model.Choice{{Value: "r", Label: "Red"}, {Value: "b", Label: "Blue"}}},
			[]interface{}{"r", "b"}, []interface{}{"r", "b"}, ""},
		{&Field{Class: "ModelMultipleChoiceField", Required: true}, []interface{}{}, nil, MsgRequired},
	} {
		out, err := c.field.Clean(c.in, nil)
		if c.msg == "" {
			if assert.NoError(t, err, "%s %v", c.field.Class, c.in) {
				assert.Equal(t, c.out, out, "%s %v", c.field.Class, c.in)
			}
		} else {
			assert.Equal(t, ValidationError{Message: c.msg}, err, "%s %v", c.field.Class, c.in)
		}
	}
}

func TestModelChoiceClean(t *testing.T) {
	_, author := pollModels(t)
	checker := &fakeChecker{keys: map[string][]interface{}{"polls.Author": {int64(1)}}}
	f := &Field{Class: "ModelChoiceField", Model: author}

	out, err := f.Clean("1", checker)
	assert.NoError(t, err)
	assert.Equal(t, int64(1), out)

	_, err = f.Clean(int64(2), checker)
	assert.Equal(t, ValidationError{Message: MsgModelChoice}, err)
	_, err = f.Clean("bogus", checker)
	assert.Equal(t, ValidationError{Message: MsgModelChoice}, err)

	f = &Field{Class: "ModelMultipleChoiceField", Model: author}
	_, err = f.Clean([]interface{}{"1", "3"}, checker)
	assert.Equal(t, ValidationError{Message: "Select a valid choice. 3 is not one of the available choices."}, err)
}

func TestNewModelForm(t *testing.T) {
	poll, _ := pollModels(t)
	mf := NewModelForm(poll, nil)
	assert.Equal(t, "PollForm", mf.Name)

	var names []string
	for _, f := range mf.Fields {
		names = append(names, f.Name)
	}
	// id and the automatic timestamp are not editable
	assert.Equal(t, []string{"question", "slug", "author", "votes", "color", "open"}, names)

	question, _ := mf.Field("question")
	assert.Equal(t, "CharField", question.Class)
	assert.Equal(t, "Question", question.Label)
	assert.True(t, question.Required)
	assert.Equal(t, "TextInput", question.Widget.Class)
	assert.Equal(t, map[string]interface{}{"maxlength": "20"}, question.Widget.Attrs)

	slug, _ := mf.Field("slug")
	assert.Equal(t, "RegexField", slug.Class)
	assert.Equal(t, 50, slug.MaxLength)

	author, _ := mf.Field("author")
	assert.Equal(t, "ModelChoiceField", author.Class)
	assert.False(t, author.Required)
	assert.Equal(t, "polls.Author", author.Model.Label())

	color, _ := mf.Field("color")
	assert.Equal(t, "TypedChoiceField", color.Class)
	assert.Equal(t, "Select", color.Widget.Class)

	open, _ := mf.Field("open")
	assert.False(t, open.Required)
	assert.Equal(t, true, open.Initial)

	mf = NewModelForm(poll, []string{"question"})
	assert.Len(t, mf.Fields, 1)
}

func TestConstructCreate(t *testing.T) {
	poll, _ := pollModels(t)
	mf := NewModelForm(poll, nil)
	now := time.Date(2016, 1, 2, 3, 4, 5, 0, time.UTC)
	checker := &fakeChecker{}

	obj, errs, err := mf.Construct(map[string]interface{}{
		"question": "Why?",
		"slug":     "why",
	}, nil, checker, now)
	require.NoError(t, err)
	assert.Empty(t, errs)
	assert.Nil(t, obj.PK)
	assert.Equal(t, map[string]interface{}{
		"question": "Why?",
		"slug":     "why",
		"author":   nil,
		"pub_date": now,
		"votes":    int64(0),
		"color":    "",
		"open":     true,
	}, obj.Values)
}

func TestConstructErrors(t *testing.T) {
	poll, _ := pollModels(t)
	mf := NewModelForm(poll, nil)
	checker := &fakeChecker{taken: map[string]interface{}{"slug": "why"}}

	_, errs, err := mf.Construct(map[string]interface{}{
		"question": "This question is far too long",
		"votes":    "many",
	}, nil, checker, time.Now())
	require.NoError(t, err)
	assert.Equal(t, Errors{
		"question": {"Ensure this value has at most 20 characters (it has 29)."},
		"slug":     {MsgRequired},
		"votes":    {MsgInteger},
	}, errs)

	_, errs, err = mf.Construct(map[string]interface{}{
		"question": "Why?",
		"slug":     "why",
	}, nil, checker, time.Now())
	require.NoError(t, err)
	assert.Equal(t, Errors{"slug": {"Poll with this Slug already exists."}}, errs)
}

func TestConstructUpdate(t *testing.T) {
	poll, _ := pollModels(t)
	mf := NewModelForm(poll, nil)
	created := time.Date(2016, 1, 2, 3, 4, 5, 0, time.UTC)
	instance := &model.Object{Model: poll, PK: int64(7), Values: map[string]interface{}{
		"question": "Why?",
		"slug":     "why",
		"pub_date": created,
		"votes":    int64(3),
	}}
	checker := &fakeChecker{taken: map[string]interface{}{"slug": "why"}}

	obj, errs, err := mf.Construct(map[string]interface{}{"votes": "4"}, instance, checker, time.Now())
	require.NoError(t, err)
	assert.Empty(t, errs)
	assert.Equal(t, int64(7), obj.PK)
	assert.Equal(t, "Why?", obj.Values["question"])
	assert.Equal(t, int64(4), obj.Values["votes"])
	assert.Equal(t, created, obj.Values["pub_date"])
	// the instance itself is untouched
	assert.Equal(t, int64(3), instance.Values["votes"])
}

func TestErrorsString(t *testing.T) {
	errs := Errors{}
	errs.Add("b", "two")
	errs.Add("a", "one")
	errs.Add("a", "more")
	assert.Equal(t, "a: one more; b: two", errs.Error())
}
