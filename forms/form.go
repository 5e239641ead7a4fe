// Copyright 2015 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

// Package forms validates submitted data.  A Form is an ordered list
// of typed fields; model forms are built from a model's fields and
// know how to turn cleaned data into an object ready to store.
package forms

import (
	"sort"
	"strings"
)

// NonFieldErrors is the Errors key for problems that are not tied to
// one field.
const NonFieldErrors = "__all__"

// Errors maps field names to their validation messages.
type Errors map[string][]string

// Add appends a message for a field.
func (e Errors) Add(field, message string) {
	e[field] = append(e[field], message)
}

// Error describes all of the messages.
func (e Errors) Error() string {
	names := make([]string, 0, len(e))
	for name := range e {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, len(names))
	for i, name := range names {
		parts[i] = name + ": " + strings.Join(e[name], " ")
	}
	return strings.Join(parts, "; ")
}

// Form is a named, ordered set of fields.
type Form struct {
	Name   string
	Fields []*Field

	// Clean, if set, runs after every field cleaned successfully
	// and may adjust the cleaned data or report errors.
	Clean func(cleaned map[string]interface{}, errs Errors)
}

// Field finds a field by name.
func (f *Form) Field(name string) (*Field, bool) {
	for _, field := range f.Fields {
		if field.Name == name {
			return field, true
		}
	}
	return nil, false
}

// Validate cleans every field of data.  If partial is true, fields
// absent from data are skipped rather than treated as empty, so
// updates can change only some fields.  The returned error is non-nil
// only if checker failed; validation problems are in the Errors,
// which is empty if the data is valid.
func (f *Form) Validate(data map[string]interface{}, partial bool, checker Checker) (map[string]interface{}, Errors, error) {
	cleaned := make(map[string]interface{})
	errs := make(Errors)
	for _, field := range f.Fields {
		value, present := data[field.Name]
		if !present && partial {
			continue
		}
		clean, err := field.Clean(value, checker)
		if err != nil {
			if verr, ok := err.(ValidationError); ok {
				errs.Add(field.Name, verr.Message)
				continue
			}
			return nil, nil, err
		}
		cleaned[field.Name] = clean
	}
	if len(errs) == 0 && f.Clean != nil {
		f.Clean(cleaned, errs)
	}
	return cleaned, errs, nil
}
