// Copyright 2015 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package forms

import (
	"regexp"

	"github.com/diffeo/go-modelrest/model"
)

// Widget describes how a client should render a form field.
type Widget struct {
	// Class is the widget class name, e.g. "TextInput" or
	// "Textarea".
	Class string

	// Attrs are the HTML attributes of the rendered widget.
	Attrs map[string]interface{}

	// Extras hold class-specific widget settings, such as
	// "render_value" or "format".
	Extras map[string]interface{}
}

// Attr returns a widget attribute by its Python-style name.  "attrs"
// returns the HTML attribute map.
func (w Widget) Attr(name string) (interface{}, bool) {
	if name == "attrs" {
		if w.Attrs == nil {
			return map[string]interface{}{}, true
		}
		return w.Attrs, true
	}
	v, ok := w.Extras[name]
	return v, ok
}

// Field is one input of a form.
type Field struct {
	// Name is the key of the field in submitted data.
	Name string

	// Class is the form field class name, such as "CharField",
	// "IntegerField" or "ModelChoiceField".  It selects the
	// cleaning rules.
	Class string

	Label    string
	Required bool
	Initial  interface{}
	HelpText string
	Widget   Widget

	MaxLength     int
	MinLength     int
	MaxValue      *float64
	MinValue      *float64
	MaxDigits     int
	DecimalPlaces int

	Choices []model.Choice

	// InputFormats are the time layouts accepted by date and time
	// fields.  The model package layouts are used if empty.
	InputFormats []string

	// Regex validates RegexField values, failing with
	// RegexMessage.
	Regex        *regexp.Regexp
	RegexMessage string

	// Model is the target of ModelChoiceField and
	// ModelMultipleChoiceField.
	Model      *model.Model
	EmptyLabel string

	// ModelField is the model field a model form field edits.
	ModelField *model.Field

	// Extras hold any other class-specific attributes.
	Extras map[string]interface{}
}

// Attr returns a field attribute by its Python-style name, as the
// schema transformers look them up.  Attributes that are not set
// return their zero values; names the field does not know return
// false.
func (f *Field) Attr(name string) (interface{}, bool) {
	switch name {
	case "label":
		return f.Label, true
	case "required":
		return f.Required, true
	case "initial":
		return f.Initial, true
	case "help_text":
		return f.HelpText, true
	case "max_length":
		return optionalInt(f.MaxLength), true
	case "min_length":
		return optionalInt(f.MinLength), true
	case "max_value":
		return optionalFloat(f.MaxValue), true
	case "min_value":
		return optionalFloat(f.MinValue), true
	case "max_digits":
		return optionalInt(f.MaxDigits), true
	case "decimal_places":
		return optionalInt(f.DecimalPlaces), true
	case "choices":
		return choiceList(f.Choices), true
	case "input_formats":
		if f.InputFormats == nil {
			return nil, true
		}
		return f.InputFormats, true
	case "regex":
		if f.Regex == nil {
			return nil, true
		}
		return f.Regex.String(), true
	case "empty_label":
		return f.EmptyLabel, true
	}
	v, ok := f.Extras[name]
	return v, ok
}

func optionalInt(n int) interface{} {
	if n == 0 {
		return nil
	}
	return n
}

func optionalFloat(f *float64) interface{} {
	if f == nil {
		return nil
	}
	return *f
}

// choiceList renders choices as [value, label] pairs.
func choiceList(choices []model.Choice) []interface{} {
	list := make([]interface{}, len(choices))
	for i, c := range choices {
		list[i] = []interface{}{c.Value, c.Label}
	}
	return list
}

// Float returns a pointer to f, for MaxValue and MinValue.
func Float(f float64) *float64 {
	return &f
}
