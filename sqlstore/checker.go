// Copyright 2015 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package sqlstore

import (
	"sort"

	"github.com/diffeo/go-modelrest/model"
)

// Exists reports whether m has an object with primary key pk.  A key
// that cannot be converted does not exist.
func (s *Store) Exists(m *model.Model, pk interface{}) (bool, error) {
	q, err := s.Query(m).Filter("pk", pk)
	if _, bad := err.(FieldError); bad {
		return false, nil
	} else if err != nil {
		return false, err
	}
	n, err := q.Count()
	return n > 0, err
}

// Count returns the number of objects of m whose fields equal the
// values in match, leaving out the object with primary key exclude
// unless that is nil.
func (s *Store) Count(m *model.Model, match map[string]interface{}, exclude interface{}) (int, error) {
	names := make([]string, 0, len(match))
	for name := range match {
		names = append(names, name)
	}
	sort.Strings(names)
	q := s.Query(m)
	var err error
	for _, name := range names {
		if q, err = q.Filter(name+"__exact", match[name]); err != nil {
			return 0, err
		}
	}
	if exclude != nil {
		if q, err = q.Exclude("pk", exclude); err != nil {
			return 0, err
		}
	}
	return q.Count()
}

// Choices lists every object of m, in its default order, labeled by
// its string form.
func (s *Store) Choices(m *model.Model) ([]model.Choice, error) {
	objs, err := s.Query(m).All()
	if err != nil {
		return nil, err
	}
	choices := make([]model.Choice, len(objs))
	for i, obj := range objs {
		choices[i] = model.Choice{Value: obj.PK, Label: obj.String()}
	}
	return choices, nil
}
