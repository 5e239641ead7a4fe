// Copyright 2015 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package datastore

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	"github.com/diffeo/go-modelrest/model"
	bolt "go.etcd.io/bbolt"
)

// KeyProperty is the pseudo-property that filters and orders compare
// entity keys with.
const KeyProperty = "__key__"

// Operators are the comparison operators a filter may use.
var Operators = []string{"=", "<", "<=", ">", ">=", "!=", "IN"}

type filter struct {
	field  *model.Field
	op     string
	values []interface{}
}

type order struct {
	field *model.Field
	desc  bool
}

// Query selects entities of one kind.  Queries are immutable: Filter
// and Order return new ones.
type Query struct {
	store   *Store
	model   *model.Model
	filters []filter
	orders  []order
}

func (q *Query) clone() *Query {
	c := *q
	c.filters = append([]filter(nil), q.filters...)
	c.orders = append([]order(nil), q.orders...)
	return &c
}

// property finds a filterable property of the query's kind.  A nil
// field with no error is the key.
func (q *Query) property(name string) (*model.Field, error) {
	if name == KeyProperty {
		return nil, nil
	}
	f, ok := q.model.Field(name)
	if !ok || f.PrimaryKey {
		return nil, PropertyError{Message: fmt.Sprintf("Invalid property name '%s' for kind %s", name, q.model.Label())}
	}
	if !f.IsIndexed() {
		return nil, PropertyError{Message: fmt.Sprintf("Property '%s' is not indexed and cannot be queried", name)}
	}
	return f, nil
}

// splitValues turns the value of an IN filter into a list.
func splitValues(value interface{}) []interface{} {
	switch v := value.(type) {
	case []interface{}:
		return v
	case []string:
		out := make([]interface{}, len(v))
		for i, s := range v {
			out[i] = s
		}
		return out
	case string:
		if v == "" {
			return nil
		}
		var out []interface{}
		for _, s := range strings.Split(v, ",") {
			out = append(out, strings.TrimSpace(s))
		}
		return out
	}
	return []interface{}{value}
}

// filterValue converts one filter operand for comparison with the
// stored values of f, or with keys if f is nil.
func (q *Query) filterValue(f *model.Field, v interface{}) (interface{}, error) {
	if f == nil {
		if key, ok := v.(Key); ok {
			return key, nil
		}
		key, err := DecodeKey(model.ToString(v))
		if err != nil {
			return nil, err
		}
		return key, nil
	}
	if f.Kind() == model.ListKind {
		// Lists match on any element
		return v, nil
	}
	cv, err := f.Coerce(v)
	if err != nil {
		return nil, PropertyError{Message: fmt.Sprintf("Invalid value %q for property '%s': %v", model.ToString(v), f.Name, err)}
	}
	if f.Kind() == model.ToOneKind && cv != nil {
		key, err := DecodeKey(model.ToString(cv))
		if err != nil {
			return nil, err
		}
		cv = key.Encode()
	}
	return cv, nil
}

// Filter narrows the query with a condition such as "rank >=".  A bare
// property name compares for equality.  IN takes a list, or a
// comma-separated string.
func (q *Query) Filter(spec string, value interface{}) (*Query, error) {
	parts := strings.Fields(spec)
	if len(parts) == 0 || len(parts) > 2 {
		return nil, BadFilterError{Filter: spec, Reason: fmt.Sprintf("Could not parse filter string: %s", spec)}
	}
	op := "="
	if len(parts) == 2 {
		op = strings.ToUpper(parts[1])
	}
	known := false
	for _, o := range Operators {
		known = known || o == op
	}
	if !known {
		return nil, BadFilterError{Filter: spec, Reason: fmt.Sprintf("Invalid operator '%s'", parts[1])}
	}
	f, err := q.property(parts[0])
	if err != nil {
		return nil, err
	}

	raw := []interface{}{value}
	if op == "IN" {
		raw = splitValues(value)
	}
	flt := filter{field: f, op: op, values: make([]interface{}, len(raw))}
	for i, v := range raw {
		if flt.values[i], err = q.filterValue(f, v); err != nil {
			return nil, err
		}
	}
	c := q.clone()
	c.filters = append(c.filters, flt)
	return c, nil
}

// Order adds a sort property, prefixed with "-" for descending order.
// Entities compare on earlier orders first, then on key.
func (q *Query) Order(name string) (*Query, error) {
	var o order
	if strings.HasPrefix(name, "-") {
		o.desc = true
		name = name[1:]
	}
	f, err := q.property(name)
	if err != nil {
		return nil, err
	}
	o.field = f
	c := q.clone()
	c.orders = append(c.orders, o)
	return c, nil
}

func compareKeys(a, b Key) int {
	if c := strings.Compare(a.Kind, b.Kind); c != 0 {
		return c
	}
	return bytes.Compare(a.ID.Bytes(), b.ID.Bytes())
}

// compareOperand compares a stored value with a filter operand,
// falling back to comparing text when list items and operands have
// different types.
func compareOperand(stored, operand interface{}) (int, bool) {
	if key, ok := operand.(Key); ok {
		if sk, ok := stored.(Key); ok {
			return compareKeys(sk, key), true
		}
		return 0, false
	}
	if c, ok := compareValues(stored, operand); ok {
		return c, true
	}
	if stored == nil || operand == nil {
		return 0, false
	}
	return strings.Compare(model.ToString(stored), model.ToString(operand)), true
}

func (flt filter) test(stored interface{}) bool {
	if flt.op == "IN" {
		for _, v := range flt.values {
			if c, ok := compareOperand(stored, v); ok && c == 0 {
				return true
			}
		}
		return false
	}
	c, ok := compareOperand(stored, flt.values[0])
	if !ok {
		return false
	}
	switch flt.op {
	case "=":
		return c == 0
	case "!=":
		return c != 0
	case "<":
		return c < 0
	case "<=":
		return c <= 0
	case ">":
		return c > 0
	case ">=":
		return c >= 0
	}
	return false
}

// matches decides whether an entity passes one filter.  A list
// property passes if any of its items does.
func (flt filter) matches(key Key, obj *model.Object) bool {
	if flt.field == nil {
		return flt.test(key)
	}
	stored := obj.Values[flt.field.Name]
	if items, isList := stored.([]interface{}); isList {
		for _, item := range items {
			if flt.test(item) {
				return true
			}
		}
		return false
	}
	return flt.test(stored)
}

type entity struct {
	key Key
	obj *model.Object
}

// run calls f with each matching entity in query order until f
// returns false.  Without orders entities are visited straight from
// the bucket in key order.
func (q *Query) run(f func(e entity) bool) error {
	var sorted []entity
	err := q.store.db.View(func(tx *bolt.Tx) error {
		kind := q.model.Label()
		bucket := tx.Bucket([]byte(kind))
		if bucket == nil {
			return nil
		}
		c := bucket.Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			key := Key{Kind: kind}
			copy(key.ID[:], k)
			obj, err := decodeEntity(q.model, key, v)
			if err != nil {
				return err
			}
			match := true
			for _, flt := range q.filters {
				if !flt.matches(key, obj) {
					match = false
					break
				}
			}
			if !match {
				continue
			}
			if len(q.orders) > 0 {
				sorted = append(sorted, entity{key, obj})
			} else if !f(entity{key, obj}) {
				return nil
			}
		}
		return nil
	})
	if err != nil || len(q.orders) == 0 {
		return err
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		for _, o := range q.orders {
			var c int
			if o.field == nil {
				c = compareKeys(sorted[i].key, sorted[j].key)
			} else {
				c, _ = compareValues(sorted[i].obj.Values[o.field.Name], sorted[j].obj.Values[o.field.Name])
			}
			if o.desc {
				c = -c
			}
			if c != 0 {
				return c < 0
			}
		}
		return false
	})
	for _, e := range sorted {
		if !f(e) {
			break
		}
	}
	return nil
}

// Fetch returns up to limit matching entities after skipping offset
// of them.  A negative limit means no limit.
func (q *Query) Fetch(limit, offset int) ([]*model.Object, error) {
	objs := []*model.Object{}
	if limit == 0 {
		return objs, nil
	}
	skipped := 0
	err := q.run(func(e entity) bool {
		if skipped < offset {
			skipped++
			return true
		}
		objs = append(objs, e.obj)
		return limit < 0 || len(objs) < limit
	})
	return objs, err
}

// Count returns the number of matching entities, counting no further
// than limit if it is positive.
func (q *Query) Count(limit int) (int, error) {
	n := 0
	err := q.run(func(e entity) bool {
		n++
		return limit <= 0 || n < limit
	})
	return n, err
}

// Get returns the first matching entity, or ErrNoSuchEntity.
func (q *Query) Get() (*model.Object, error) {
	objs, err := q.Fetch(1, 0)
	if err != nil {
		return nil, err
	}
	if len(objs) == 0 {
		return nil, ErrNoSuchEntity{Key: q.model.Label()}
	}
	return objs[0], nil
}
