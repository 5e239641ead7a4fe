// Copyright 2015 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package forms

import (
	"fmt"
	"strings"
	"time"

	"github.com/diffeo/go-modelrest/model"
)

// ModelForm is a form whose fields edit the fields of a model.
type ModelForm struct {
	Form
	Model *model.Model
}

// NewModelForm builds a form for m.  If fields is non-empty only the
// named fields are included; otherwise every editable field is, in
// declaration order.  Fields with no form equivalent, such as primary
// keys and automatic timestamps, are always left out.
func NewModelForm(m *model.Model, fields []string) *ModelForm {
	mf := &ModelForm{Form: Form{Name: m.Name + "Form"}, Model: m}
	wanted := make(map[string]bool)
	for _, name := range fields {
		wanted[name] = true
	}
	for _, mfield := range m.Fields {
		if len(wanted) > 0 && !wanted[mfield.Name] {
			continue
		}
		if !mfield.IsEditable() {
			continue
		}
		if field := FormField(mfield); field != nil {
			mf.Fields = append(mf.Fields, field)
		}
	}
	return mf
}

func capfirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// FormField returns the form field that edits a model field, or nil if
// the model field cannot be edited through a form.
func FormField(mf *model.Field) *Field {
	f := &Field{
		Name:       mf.Name,
		Label:      capfirst(mf.VerboseName),
		Required:   mf.IsRequired(),
		HelpText:   mf.HelpText,
		ModelField: mf,
	}
	if mf.DefaultFunc == nil && mf.Default != nil {
		f.Initial = mf.Default
	}
	textInput := func() {
		f.Widget = Widget{Class: "TextInput"}
		if f.MaxLength > 0 {
			f.Widget.Attrs = map[string]interface{}{"maxlength": fmt.Sprint(f.MaxLength)}
		}
	}
	textarea := func() {
		f.Widget = Widget{Class: "Textarea", Attrs: map[string]interface{}{"cols": "40", "rows": "10"}}
	}

	switch mf.Class {
	case "CharField", "StringProperty", "CategoryProperty", "PhoneNumberProperty",
		"PostalAddressProperty", "IMProperty", "GeoPtProperty":
		f.Class = "CharField"
		f.MaxLength = mf.MaxLength
		if mf.Class == "StringProperty" && f.MaxLength == 0 {
			f.MaxLength = 500
		}
		if mf.Multiline {
			textarea()
		} else {
			textInput()
		}
	case "TextField", "TextProperty", "XMLField":
		f.Class = "CharField"
		textarea()
	case "StringListProperty", "ListProperty":
		f.Class = "CharField"
		textarea()
	case "SlugField":
		f.Class, f.Regex, f.RegexMessage = "RegexField", slugRegexp, MsgSlug
		f.MaxLength = mf.MaxLength
		if f.MaxLength == 0 {
			f.MaxLength = 50
		}
		textInput()
	case "CommaSeparatedIntegerField":
		f.Class, f.Regex, f.RegexMessage = "RegexField", commaRegexp, MsgCommaIntegers
		f.MaxLength = mf.MaxLength
		textInput()
	case "EmailField", "EmailProperty":
		f.Class = "EmailField"
		f.MaxLength = mf.MaxLength
		textInput()
	case "URLField", "LinkProperty":
		f.Class = "URLField"
		f.MaxLength = mf.MaxLength
		if v, ok := mf.Attr("verify_exists"); ok {
			f.Extras = map[string]interface{}{"verify_exists": v}
		}
		textInput()
	case "IPAddressField":
		f.Class = "IPAddressField"
		textInput()
	case "FileField", "ImageField", "FilePathField":
		f.Class = mf.Class
		f.MaxLength = mf.MaxLength
		f.Widget = Widget{Class: "FileInput"}
		if mf.Class == "FilePathField" {
			f.Extras = make(map[string]interface{})
			for _, name := range []string{"path", "match", "recursive"} {
				if v, ok := mf.Attr(name); ok {
					f.Extras[name] = v
				}
			}
			f.Widget = Widget{Class: "Select"}
		}
	case "IntegerField", "SmallIntegerField", "IntegerProperty":
		f.Class = "IntegerField"
		textInput()
	case "PositiveIntegerField", "PositiveSmallIntegerField":
		f.Class = "IntegerField"
		f.MinValue = Float(0)
		textInput()
	case "RatingProperty":
		f.Class = "IntegerField"
		f.MinValue, f.MaxValue = Float(0), Float(100)
		textInput()
	case "FloatField", "FloatProperty":
		f.Class = "FloatField"
		textInput()
	case "DecimalField":
		f.Class = "DecimalField"
		f.MaxDigits, f.DecimalPlaces = mf.MaxDigits, mf.DecimalPlaces
		textInput()
	case "BooleanField", "BooleanProperty":
		f.Class = "BooleanField"
		f.Required = false
		f.Widget = Widget{Class: "CheckboxInput"}
	case "NullBooleanField":
		f.Class = "NullBooleanField"
		f.Required = false
		f.Widget = Widget{Class: "NullBooleanSelect"}
	case "DateField", "DateProperty":
		f.Class = "DateField"
		f.Widget = Widget{Class: "DateInput", Extras: map[string]interface{}{"format": "%Y-%m-%d"}}
	case "DateTimeField", "DateTimeProperty":
		f.Class = "DateTimeField"
		f.Widget = Widget{Class: "DateTimeInput", Extras: map[string]interface{}{"format": "%Y-%m-%d %H:%M:%S"}}
	case "TimeField", "TimeProperty":
		f.Class = "TimeField"
		f.Widget = Widget{Class: "TimeInput", Extras: map[string]interface{}{"format": "%H:%M:%S"}}
	case "ForeignKey", "OneToOneField", "ReferenceProperty", "SelfReferenceProperty":
		f.Class = "ModelChoiceField"
		f.Model = mf.RelatedModel()
		f.EmptyLabel = "---------"
		f.Widget = Widget{Class: "Select"}
	case "ManyToManyField":
		f.Class = "ModelMultipleChoiceField"
		f.Model = mf.RelatedModel()
		f.Widget = Widget{Class: "SelectMultiple"}
	default:
		return nil
	}

	if len(mf.Choices) > 0 && f.Class != "ModelChoiceField" {
		f.Class = "TypedChoiceField"
		f.Choices = mf.Choices
		f.Widget = Widget{Class: "Select"}
	}
	return f
}

// Construct validates data and produces the object to store.  With a
// nil instance a new object is built, and fields that are missing from
// the form, or missing from data and have a default, get the model
// defaults.  Otherwise a copy of instance is changed, and fields absent
// from data keep their current values.  Automatic timestamps are set
// from now.  Uniqueness is checked against checker, which may be nil
// to skip store lookups.  The error is non-nil only if checker failed.
func (mf *ModelForm) Construct(data map[string]interface{}, instance *model.Object, checker Checker, now time.Time) (*model.Object, Errors, error) {
	creating := instance == nil
	cleaned, errs, err := mf.Validate(data, !creating, checker)
	if err != nil || len(errs) > 0 {
		return nil, errs, err
	}

	var obj *model.Object
	if creating {
		obj = model.NewObject(mf.Model)
		for _, field := range mf.Model.Fields {
			if field.PrimaryKey {
				continue
			}
			if field.HasDefault() {
				obj.Set(field.Name, field.DefaultValue())
			} else if field.Kind() == model.ToManyKind || field.Kind() == model.ListKind {
				obj.Set(field.Name, []interface{}{})
			} else {
				obj.Set(field.Name, nil)
			}
		}
	} else {
		obj = instance.Copy()
	}
	for name, value := range cleaned {
		if _, present := data[name]; !present && creating {
			if field, ok := mf.Model.Field(name); ok && field.HasDefault() {
				continue
			}
		}
		obj.Set(name, value)
	}
	for _, field := range mf.Model.Fields {
		if field.AutoNow || (field.AutoNowAdd && creating) {
			obj.Set(field.Name, now)
		}
	}
	// Fields that are still empty but are not nullable take their
	// zero value, which is what the relational store expects.
	for _, field := range mf.Model.Fields {
		if field.PrimaryKey || field.Null || obj.Values[field.Name] != nil {
			continue
		}
		switch field.Kind() {
		case model.StringKind, model.TextKind:
			obj.Set(field.Name, "")
		case model.BooleanKind:
			obj.Set(field.Name, false)
		}
	}

	if checker != nil {
		if err := mf.checkUnique(obj, errs, checker); err != nil {
			return nil, nil, err
		}
		if len(errs) > 0 {
			return nil, errs, nil
		}
	}
	return obj, errs, nil
}

// checkUnique adds an error for every unique field, and every unique
// combination, that another object already holds.
func (mf *ModelForm) checkUnique(obj *model.Object, errs Errors, checker Checker) error {
	m := mf.Model
	taken := func(names []string) (bool, error) {
		match := make(map[string]interface{})
		for _, name := range names {
			v := obj.Values[name]
			if v == nil {
				// NULL never collides
				return false, nil
			}
			match[name] = v
		}
		n, err := checker.Count(m, match, obj.PK)
		return n > 0, err
	}
	label := func(name string) string {
		if f, ok := m.Field(name); ok && f.VerboseName != "" {
			return capfirst(f.VerboseName)
		}
		return capfirst(model.SplitWords(name))
	}
	for _, field := range m.Fields {
		if !field.Unique || field.PrimaryKey {
			continue
		}
		if _, onForm := mf.Form.Field(field.Name); !onForm {
			continue
		}
		dup, err := taken([]string{field.Name})
		if err != nil {
			return err
		}
		if dup {
			errs.Add(field.Name, fmt.Sprintf(MsgUnique, capfirst(m.VerboseName), label(field.Name)))
		}
	}
	for _, names := range m.UniqueTogether {
		dup, err := taken(names)
		if err != nil {
			return err
		}
		if dup {
			labels := make([]string, len(names))
			for i, name := range names {
				labels[i] = label(name)
			}
			errs.Add(NonFieldErrors, fmt.Sprintf(MsgUnique, capfirst(m.VerboseName), strings.Join(labels, " and ")))
		}
	}
	return nil
}
