// Copyright 2015 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package transform

import (
	"sync"

	"github.com/diffeo/go-modelrest/forms"
	"github.com/diffeo/go-modelrest/model"
	"github.com/sirupsen/logrus"
)

// ChoiceSource lists the objects a model choice field can select.
type ChoiceSource interface {
	Choices(m *model.Model) ([]model.Choice, error)
}

// WidgetTransformation renders a widget with the given extra
// attributes.
type WidgetTransformation func(w forms.Widget, extras []string) map[string]interface{}

// FormFieldTransformation renders a form field, without its key,
// order or widget.
type FormFieldTransformation func(f *forms.Field, extras []string, src ChoiceSource) (map[string]interface{}, error)

type widgetEntry struct {
	t      WidgetTransformation
	extras []string
}

type formFieldEntry struct {
	t      FormFieldTransformation
	extras []string
}

// FormTransformer renders forms as client form descriptions.
type FormTransformer struct {
	lock    sync.RWMutex
	widgets map[string]widgetEntry
	fields  map[string]formFieldEntry
}

// Forms is the default form transformer.
var Forms = NewFormTransformer()

// RenderWidget is the default widget transformation.
func RenderWidget(w forms.Widget, extras []string) map[string]interface{} {
	attrs := append([]Attr{{From: "attrs", To: "attributes"}}, Extras(extras, nil)...)
	out := Collect(w.Attr, attrs, w.Class)
	out["widgetClass"] = w.Class
	return out
}

var formFieldAttrs = []Attr{
	{From: "label", To: "title"},
	{From: "required", To: "isRequired"},
	{From: "initial", To: "defaultValue"},
	{From: "help_text", To: "hint", Ignore: ""},
}

// RenderFormField is the default form field transformation.
func RenderFormField(f *forms.Field, extras []string, src ChoiceSource) (map[string]interface{}, error) {
	attrs := append(append([]Attr(nil), formFieldAttrs...), Extras(extras, nil)...)
	out := Collect(f.Attr, attrs, f.Name)
	out["fieldClass"] = f.Class
	return out, nil
}

// RenderModelChoice renders fields that select model objects.  The
// choices come from src when it is given, after the empty choice.
func RenderModelChoice(f *forms.Field, extras []string, src ChoiceSource) (map[string]interface{}, error) {
	out, err := RenderFormField(f, extras, src)
	if err != nil {
		return nil, err
	}
	choices := f.Choices
	if src != nil && f.Model != nil {
		choices, err = src.Choices(f.Model)
		if err != nil {
			return nil, err
		}
	}
	list := []interface{}{}
	if f.EmptyLabel != "" && f.Class == "ModelChoiceField" {
		list = append(list, []interface{}{"", f.EmptyLabel})
	}
	for _, c := range choices {
		list = append(list, []interface{}{c.Value, c.Label})
	}
	out["choices"] = list
	out["emptyLabel"] = f.EmptyLabel
	if f.Model != nil {
		out["modelClass"] = f.Model.ObjectLabel()
	}
	return out, nil
}

// NewFormTransformer creates a transformer with the built-in widgets
// and fields registered.
func NewFormTransformer() *FormTransformer {
	t := &FormTransformer{
		widgets: make(map[string]widgetEntry),
		fields:  make(map[string]formFieldEntry),
	}
	for _, w := range []struct {
		name   string
		extras []string
	}{
		{"TextInput", nil},
		{"PasswordInput", []string{"render_value"}},
		{"HiddenInput", nil},
		{"MultipleHiddenInput", nil},
		{"FileInput", nil},
		{"DateInput", []string{"format"}},
		{"DateTimeInput", []string{"format"}},
		{"TimeInput", []string{"format"}},
		{"Textarea", nil},
		{"CheckboxInput", nil},
		{"Select", nil},
		{"NullBooleanSelect", nil},
		{"SelectMultiple", nil},
		{"RadioSelect", nil},
		{"CheckboxSelectMultiple", nil},
		{"MultiWidget", nil},
		{"SplitDateTimeWidget", []string{"date_format", "time_format"}},
		{"SelectDateWidget", nil},
	} {
		if err := t.RegisterWidget(w.name, nil, w.extras...); err != nil {
			panic(err)
		}
	}
	for _, f := range []struct {
		name   string
		t      FormFieldTransformation
		extras []string
	}{
		{"BooleanField", nil, nil},
		{"CharField", nil, []string{"max_length", "min_length"}},
		{"ChoiceField", nil, []string{"choices"}},
		{"TypeChoiceField", nil, []string{"choices", "empty_value"}},
		{"TypedChoiceField", nil, []string{"choices", "empty_value"}},
		{"DateField", nil, []string{"input_formats"}},
		{"DateTimeField", nil, []string{"input_formats"}},
		{"DecimalField", nil, []string{"max_value", "min_value", "max_digits", "decimal_places"}},
		{"EmailField", nil, []string{"max_length", "min_length"}},
		{"FileField", nil, nil},
		{"FilePathField", nil, []string{"path", "recursive", "match"}},
		{"FloatField", nil, nil},
		{"ImageField", nil, nil},
		{"IntegerField", nil, []string{"max_value", "min_value"}},
		{"IPAddressField", nil, nil},
		{"MultipleChoiceField", nil, []string{"choices"}},
		{"NullBooleanField", nil, nil},
		{"RegexField", nil, []string{"regex"}},
		{"TimeField", nil, []string{"input_formats"}},
		{"URLField", nil, []string{"max_length", "min_length", "verify_exists", "validator_user_agent"}},
		{"SplitDateTimeField", nil, []string{"input_date_formats", "input_time_formats"}},
		{"ComboField", nil, nil},
		{"MultiValueField", nil, nil},
		{"ModelChoiceField", RenderModelChoice, nil},
		{"ModelMultipleChoiceField", RenderModelChoice, nil},
	} {
		if err := t.RegisterField(f.name, f.t, f.extras...); err != nil {
			panic(err)
		}
	}
	return t
}

// RegisterWidget adds a widget class.  A nil transformation uses
// RenderWidget.
func (t *FormTransformer) RegisterWidget(name string, fn WidgetTransformation, extras ...string) error {
	t.lock.Lock()
	defer t.lock.Unlock()
	if _, present := t.widgets[name]; present {
		return ErrAlreadyRegistered{Class: name}
	}
	if fn == nil {
		fn = RenderWidget
	}
	t.widgets[name] = widgetEntry{t: fn, extras: extras}
	return nil
}

// UnregisterWidget removes a widget class.
func (t *FormTransformer) UnregisterWidget(name string) error {
	t.lock.Lock()
	defer t.lock.Unlock()
	if _, present := t.widgets[name]; !present {
		return ErrNotRegistered{Class: name}
	}
	delete(t.widgets, name)
	return nil
}

// RegisterField adds a form field class.  A nil transformation uses
// RenderFormField.
func (t *FormTransformer) RegisterField(name string, fn FormFieldTransformation, extras ...string) error {
	t.lock.Lock()
	defer t.lock.Unlock()
	if _, present := t.fields[name]; present {
		return ErrAlreadyRegistered{Class: name}
	}
	if fn == nil {
		fn = RenderFormField
	}
	t.fields[name] = formFieldEntry{t: fn, extras: extras}
	return nil
}

// UnregisterField removes a form field class.
func (t *FormTransformer) UnregisterField(name string) error {
	t.lock.Lock()
	defer t.lock.Unlock()
	if _, present := t.fields[name]; !present {
		return ErrNotRegistered{Class: name}
	}
	delete(t.fields, name)
	return nil
}

// GenerateFields renders every field of form in order.  Fields
// without a widget get a TextInput.  Fields or widgets of
// unregistered classes are skipped with a warning.
func (t *FormTransformer) GenerateFields(form *forms.Form, src ChoiceSource) ([]interface{}, error) {
	list := []interface{}{}
	for i, field := range form.Fields {
		widget := field.Widget
		if widget.Class == "" {
			widget.Class = "TextInput"
		}
		t.lock.RLock()
		fe, fok := t.fields[field.Class]
		we, wok := t.widgets[widget.Class]
		t.lock.RUnlock()
		if !fok || !wok {
			logrus.WithFields(logrus.Fields{
				"form":   form.Name,
				"field":  field.Name,
				"class":  field.Class,
				"widget": widget.Class,
			}).Warn("no transformation for form field, skipping")
			continue
		}
		out, err := fe.t(field, fe.extras, src)
		if err != nil {
			return nil, err
		}
		if title, _ := out["title"].(string); title == "" {
			out["title"] = model.Title(model.SplitWords(field.Name))
		}
		out["key"] = field.Name
		out["fieldOrder"] = i
		out["widget"] = we.t(widget, we.extras)
		list = append(list, out)
	}
	return list, nil
}

// Render describes a form.  src may be nil, in which case model choice
// fields list only their own choices.
func (t *FormTransformer) Render(form *forms.Form, src ChoiceSource) (map[string]interface{}, error) {
	fields, err := t.GenerateFields(form, src)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"formName":     form.Name,
		"submitionURL": nil,
		"method":       nil,
		"fields":       fields,
	}, nil
}
