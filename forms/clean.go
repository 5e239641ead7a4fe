// Copyright 2015 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package forms

import (
	"fmt"
	"net"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/diffeo/go-modelrest/model"
)

// Cleaning error messages.
const (
	MsgRequired      = "This field is required."
	MsgMaxLength     = "Ensure this value has at most %d characters (it has %d)."
	MsgMinLength     = "Ensure this value has at least %d characters (it has %d)."
	MsgInteger       = "Enter a whole number."
	MsgNumber        = "Enter a number."
	MsgMaxValue      = "Ensure this value is less than or equal to %v."
	MsgMinValue      = "Ensure this value is greater than or equal to %v."
	MsgMaxDigits     = "Ensure that there are no more than %d digits in total."
	MsgDecimalPlaces = "Ensure that there are no more than %d decimal places."
	MsgDate          = "Enter a valid date."
	MsgDateTime      = "Enter a valid date/time."
	MsgTime          = "Enter a valid time."
	MsgEmail         = "Enter a valid e-mail address."
	MsgURL           = "Enter a valid URL."
	MsgIPAddress     = "Enter a valid IPv4 address."
	MsgSlug          = "Enter a valid 'slug' consisting of letters, numbers, underscores or hyphens."
	MsgCommaIntegers = "Enter only digits separated by commas."
	MsgInvalid       = "Enter a valid value."
	MsgChoice        = "Select a valid choice. %v is not one of the available choices."
	MsgModelChoice   = "Select a valid choice. That choice is not one of the available choices."
	MsgList          = "Enter a list of values."
	MsgUnique        = "%s with this %s already exists."
)

var (
	slugRegexp   = regexp.MustCompile(`^[-\w]+$`)
	commaRegexp  = regexp.MustCompile(`^[\d,]+$`)
	emailRegexp  = regexp.MustCompile(`(?i)^[-!#$%&'*+/=?^_` + "`" + `{}|~0-9A-Z]+(\.[-!#$%&'*+/=?^_` + "`" + `{}|~0-9A-Z]+)*@(?:[A-Z0-9](?:[A-Z0-9-]{0,61}[A-Z0-9])?\.)+[A-Z]{2,6}\.?$`)
	urlRegexp    = regexp.MustCompile(`(?i)^https?://(?:(?:[A-Z0-9](?:[A-Z0-9-]{0,61}[A-Z0-9])?\.)+[A-Z]{2,6}\.?|localhost|\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3})(?::\d+)?(?:/?|[/?]\S+)$`)
	errNotScalar = ValidationError{Message: MsgInvalid}
)

// Checker answers the questions about stored objects that cleaning
// needs to ask: whether a related object exists, and whether a value
// is already taken.
type Checker interface {
	// Exists reports whether m has an object with primary key pk.
	Exists(m *model.Model, pk interface{}) (bool, error)

	// Count returns the number of objects of m whose fields equal
	// the values in match, not counting the object with primary
	// key exclude if that is non-nil.
	Count(m *model.Model, match map[string]interface{}, exclude interface{}) (int, error)
}

// ValidationError is a user-facing cleaning failure.
type ValidationError struct {
	Message string
}

func (e ValidationError) Error() string {
	return e.Message
}

func invalid(format string, args ...interface{}) error {
	return ValidationError{Message: fmt.Sprintf(format, args...)}
}

// IsEmpty returns true for nil, empty strings and empty lists.
func IsEmpty(v interface{}) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return x == ""
	case []byte:
		return len(x) == 0
	case []interface{}:
		return len(x) == 0
	case []string:
		return len(x) == 0
	}
	return false
}

// scalar unwraps single-element lists, which is what form-encoded
// requests send for plain fields.
func scalar(v interface{}) (interface{}, error) {
	switch x := v.(type) {
	case []interface{}:
		if len(x) != 1 {
			return nil, errNotScalar
		}
		return x[0], nil
	case []string:
		if len(x) != 1 {
			return nil, errNotScalar
		}
		return x[0], nil
	case map[string]interface{}:
		return nil, errNotScalar
	}
	return v, nil
}

// Clean validates one submitted value and converts it to the field's
// Go type.  A ValidationError describes bad input; any other error
// came from checker.
func (f *Field) Clean(v interface{}, checker Checker) (interface{}, error) {
	switch f.Class {
	case "ModelMultipleChoiceField", "MultipleChoiceField":
		return f.cleanList(v, checker)
	}
	if f.ModelField != nil && f.ModelField.Kind() == model.ListKind {
		return f.cleanList(v, checker)
	}
	v, err := scalar(v)
	if err != nil {
		return nil, err
	}
	switch f.Class {
	case "BooleanField":
		b, _ := model.ToBool(v)
		if f.Required && !b {
			return nil, invalid(MsgRequired)
		}
		return b, nil
	case "NullBooleanField":
		switch model.ToString(v) {
		case "2":
			return true, nil
		case "3":
			return false, nil
		}
		if b, ok := model.ToBool(v); ok && !IsEmpty(v) {
			return b, nil
		}
		return nil, nil
	}
	if IsEmpty(v) {
		if f.Required {
			return nil, invalid(MsgRequired)
		}
		return f.emptyValue(), nil
	}
	switch f.Class {
	case "IntegerField":
		i, ok := model.ToInt64(v)
		if !ok {
			return nil, invalid(MsgInteger)
		}
		return i, f.checkRange(float64(i))
	case "FloatField":
		x, ok := model.ToFloat(v)
		if !ok {
			return nil, invalid(MsgNumber)
		}
		return x, f.checkRange(x)
	case "DecimalField":
		return f.cleanDecimal(v)
	case "DateField", "DateTimeField", "TimeField":
		return f.cleanTime(v)
	case "TypedChoiceField", "ChoiceField":
		return f.cleanChoice(v)
	case "ModelChoiceField":
		return f.cleanModelChoice(v, checker)
	}
	return f.cleanString(v)
}

func (f *Field) emptyValue() interface{} {
	switch f.Class {
	case "CharField", "EmailField", "URLField", "RegexField", "IPAddressField",
		"FileField", "ImageField", "FilePathField":
		return ""
	}
	return nil
}

func (f *Field) cleanString(v interface{}) (interface{}, error) {
	switch v.(type) {
	case string, []byte, int, int64, float64, bool, time.Time:
	default:
		return nil, errNotScalar
	}
	s := model.ToString(v)
	switch f.Class {
	case "EmailField", "URLField", "IPAddressField":
		s = strings.TrimSpace(s)
	}
	n := utf8.RuneCountInString(s)
	if f.MaxLength > 0 && n > f.MaxLength {
		return nil, invalid(MsgMaxLength, f.MaxLength, n)
	}
	if f.MinLength > 0 && n < f.MinLength {
		return nil, invalid(MsgMinLength, f.MinLength, n)
	}
	switch f.Class {
	case "EmailField":
		if !emailRegexp.MatchString(s) {
			return nil, invalid(MsgEmail)
		}
	case "URLField":
		if !strings.Contains(s, "://") {
			s = "http://" + s
		}
		if !urlRegexp.MatchString(s) {
			return nil, invalid(MsgURL)
		}
	case "IPAddressField":
		if ip := net.ParseIP(s); ip == nil || ip.To4() == nil || strings.Contains(s, ":") {
			return nil, invalid(MsgIPAddress)
		}
	case "RegexField":
		if f.Regex != nil && !f.Regex.MatchString(s) {
			msg := f.RegexMessage
			if msg == "" {
				msg = MsgInvalid
			}
			return nil, ValidationError{Message: msg}
		}
	}
	if len(f.Choices) > 0 {
		return f.cleanChoice(s)
	}
	return s, nil
}

func (f *Field) checkRange(x float64) error {
	if f.MaxValue != nil && x > *f.MaxValue {
		return invalid(MsgMaxValue, *f.MaxValue)
	}
	if f.MinValue != nil && x < *f.MinValue {
		return invalid(MsgMinValue, *f.MinValue)
	}
	return nil
}

func (f *Field) cleanDecimal(v interface{}) (interface{}, error) {
	s := strings.TrimSpace(model.ToString(v))
	x, ok := model.ToFloat(s)
	if !ok {
		return nil, invalid(MsgNumber)
	}
	if err := f.checkRange(x); err != nil {
		return nil, err
	}
	digits := strings.TrimLeft(s, "+-")
	whole, frac := digits, ""
	if dot := strings.IndexByte(digits, '.'); dot >= 0 {
		whole, frac = digits[:dot], digits[dot+1:]
	}
	whole = strings.TrimLeft(whole, "0")
	if f.MaxDigits > 0 && len(whole)+len(frac) > f.MaxDigits {
		return nil, invalid(MsgMaxDigits, f.MaxDigits)
	}
	if f.DecimalPlaces > 0 && len(frac) > f.DecimalPlaces {
		return nil, invalid(MsgDecimalPlaces, f.DecimalPlaces)
	}
	return x, nil
}

func (f *Field) cleanTime(v interface{}) (interface{}, error) {
	kind, msg := model.DateTimeKind, MsgDateTime
	switch f.Class {
	case "DateField":
		kind, msg = model.DateKind, MsgDate
	case "TimeField":
		kind, msg = model.TimeKind, MsgTime
	}
	if t, ok := v.(time.Time); ok {
		return t, nil
	}
	s, ok := v.(string)
	if !ok {
		return nil, ValidationError{Message: msg}
	}
	if len(f.InputFormats) > 0 {
		for _, layout := range f.InputFormats {
			if t, err := time.Parse(layout, strings.TrimSpace(s)); err == nil {
				return t, nil
			}
		}
		return nil, ValidationError{Message: msg}
	}
	t, err := model.ParseTime(kind, s)
	if err != nil {
		return nil, ValidationError{Message: msg}
	}
	return t, nil
}

// cleanChoice accepts a value matching one of the choices, compared
// as strings, and returns the choice's own value.
func (f *Field) cleanChoice(v interface{}) (interface{}, error) {
	s := model.ToString(v)
	for _, c := range f.Choices {
		if model.ToString(c.Value) == s {
			if f.Class == "ChoiceField" {
				return s, nil
			}
			return c.Value, nil
		}
	}
	return nil, invalid(MsgChoice, s)
}

// relatedKey converts a submitted value to the primary key type of
// the related model.
func (f *Field) relatedKey(v interface{}) (interface{}, bool) {
	if f.Model != nil && f.Model.Datastore {
		s := model.ToString(v)
		return s, s != ""
	}
	return model.ToInt64(v)
}

func (f *Field) cleanModelChoice(v interface{}, checker Checker) (interface{}, error) {
	key, ok := f.relatedKey(v)
	if !ok {
		return nil, invalid(MsgModelChoice)
	}
	if checker != nil && f.Model != nil {
		exists, err := checker.Exists(f.Model, key)
		if err != nil {
			return nil, err
		}
		if !exists {
			return nil, invalid(MsgModelChoice)
		}
	}
	return key, nil
}

func (f *Field) cleanList(v interface{}, checker Checker) (interface{}, error) {
	var items []interface{}
	switch x := v.(type) {
	case nil:
	case []interface{}:
		items = x
	case []string:
		for _, s := range x {
			items = append(items, s)
		}
	case string:
		if f.ModelField != nil && f.ModelField.Kind() == model.ListKind {
			// Textarea input: one item per line
			for _, line := range strings.Split(x, "\n") {
				if line = strings.TrimSpace(line); line != "" {
					items = append(items, line)
				}
			}
		} else if x != "" {
			items = []interface{}{x}
		}
	default:
		if f.Class == "ModelMultipleChoiceField" {
			items = []interface{}{x}
		} else {
			return nil, invalid(MsgList)
		}
	}
	if len(items) == 0 {
		if f.Required {
			return nil, invalid(MsgRequired)
		}
		return []interface{}{}, nil
	}
	out := make([]interface{}, 0, len(items))
	for _, item := range items {
		switch f.Class {
		case "ModelMultipleChoiceField":
			key, ok := f.relatedKey(item)
			if !ok {
				return nil, invalid(MsgChoice, model.ToString(item))
			}
			if checker != nil && f.Model != nil {
				exists, err := checker.Exists(f.Model, key)
				if err != nil {
					return nil, err
				}
				if !exists {
					return nil, invalid(MsgChoice, key)
				}
			}
			out = append(out, key)
		case "MultipleChoiceField":
			c, err := f.cleanChoice(item)
			if err != nil {
				return nil, err
			}
			out = append(out, c)
		default:
			out = append(out, item)
		}
	}
	return out, nil
}
