// Copyright 2015 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package transform

import (
	"github.com/diffeo/go-modelrest/model"
)

func optional(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func optionalInt(n int) interface{} {
	if n == 0 {
		return nil
	}
	return n
}

// FieldGetter looks up model field attributes by their Python names.
// Defaults computed by a function are not rendered.
func FieldGetter(f *model.Field) Getter {
	return func(name string) (interface{}, bool) {
		switch name {
		case "name":
			return f.Name, true
		case "verbose_name":
			return optional(f.VerboseName), true
		case "help_text":
			return f.HelpText, true
		case "editable":
			return !f.ReadOnly && !f.AutoNow && !f.AutoNowAdd, true
		case "default":
			if f.DefaultFunc != nil || f.Default == nil {
				return NotProvided, true
			}
			return f.Default, true
		case "primary_key":
			return f.PrimaryKey, true
		case "unique":
			return f.Unique || f.PrimaryKey, true
		case "unique_for_date":
			return optional(f.UniqueForDate), true
		case "unique_for_month":
			return optional(f.UniqueForMonth), true
		case "unique_for_year":
			return optional(f.UniqueForYear), true
		case "blank":
			return f.Blank, true
		case "null":
			return f.Null, true
		case "db_index":
			return f.DBIndex, true
		case "required":
			return f.IsRequired(), true
		case "indexed":
			return f.IsIndexed(), true
		case "multiline":
			return f.Multiline, true
		case "auto_now":
			return f.AutoNow, true
		case "auto_now_add":
			return f.AutoNowAdd, true
		case "max_length":
			return optionalInt(f.MaxLength), true
		case "max_digits":
			return optionalInt(f.MaxDigits), true
		case "decimal_places":
			return optionalInt(f.DecimalPlaces), true
		case "choices":
			if len(f.Choices) == 0 && f.Model() != nil && f.Model().Datastore {
				return nil, true
			}
			list := make([]interface{}, len(f.Choices))
			for i, c := range f.Choices {
				list[i] = []interface{}{c.Value, c.Label}
			}
			return list, true
		case "related_name", "collection_name":
			return optional(f.RelatedName), true
		}
		return f.Attr(name)
	}
}
