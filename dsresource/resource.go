// Copyright 2015 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

// Package dsresource serves datastore models kept in a datastore.Store.
//
// Lookup parameters take the same "field__lookup" form relational
// resources use, limited to the lookups the datastore can answer:
// exact, lt, lte, gt, gte, not and in.  A parameter with no lookup
// compares for equality, and "pk" names the entity key.
package dsresource

import (
	"strings"

	"github.com/diffeo/go-modelrest/datastore"
	"github.com/diffeo/go-modelrest/model"
	"github.com/diffeo/go-modelrest/restapi"
)

// LookupOperators maps relational lookup names to datastore filter
// operators.
var LookupOperators = map[string]string{
	"exact": "=",
	"lt":    "<",
	"lte":   "<=",
	"gt":    ">",
	"gte":   ">=",
	"not":   "!=",
	"in":    "IN",
}

// batchSize is how many entities length and destroy handle per query.
const batchSize = 1000

// Resource is a model resource over an entity datastore.
type Resource struct {
	*restapi.ModelBase

	// Store holds the entities.
	Store *datastore.Store
}

// Constructor returns a restapi constructor that builds resources
// over store.
func Constructor(store *datastore.Store) restapi.Constructor {
	return func(site *restapi.Site, opts restapi.Options) (restapi.Resource, error) {
		return New(site, store, opts)
	}
}

// New builds a datastore model resource.
func New(site *restapi.Site, store *datastore.Store, opts restapi.Options) (*Resource, error) {
	base, err := restapi.NewModelBase(site, opts)
	if err != nil {
		return nil, err
	}
	base.Checker = store
	base.Choices = store
	res := &Resource{ModelBase: base, Store: store}
	base.Bind(restapi.ModelOperations{
		Length:  res.Length,
		List:    res.List,
		Show:    res.Show,
		Create:  res.Create,
		Update:  res.Update,
		Destroy: res.Destroy,
	})
	return res, nil
}

// queryError turns a bad filter or key into a client error.
func queryError(err error) error {
	switch err.(type) {
	case datastore.BadKeyError, datastore.PropertyError, datastore.BadFilterError:
		return restapi.ErrBadRequest{Err: err}
	case datastore.ErrNoSuchEntity:
		return restapi.ErrNotFound{Err: err}
	}
	return err
}

// FilterSpec converts a lookup parameter name such as "rank__gte" to
// a datastore filter such as "rank >=".
func FilterSpec(key string) (string, error) {
	name, op := key, "="
	if i := strings.LastIndex(key, "__"); i > 0 && key != datastore.KeyProperty {
		lookup := key[i+2:]
		var ok bool
		if op, ok = LookupOperators[lookup]; !ok {
			return "", datastore.BadFilterError{Filter: key, Reason: "Unsupported lookup '" + lookup + "'"}
		}
		name = key[:i]
	}
	if name == "pk" {
		name = datastore.KeyProperty
	}
	return name + " " + op, nil
}

// Query returns the entities the request's user may see.
func (res *Resource) Query(r *restapi.Request) (*datastore.Query, error) {
	q := res.Store.Query(res.Model)
	if field, pk, ok := res.Owner(r); ok {
		var err error
		if q, err = q.Filter(field+" =", pk); err != nil {
			return nil, err
		}
	}
	return q, nil
}

// filtered applies the request's lookup parameters.
func (res *Resource) filtered(r *restapi.Request, q *datastore.Query) (*datastore.Query, error) {
	for _, filter := range res.Filters(r.Query) {
		spec, err := FilterSpec(filter.Key)
		if err != nil {
			return nil, queryError(err)
		}
		if q, err = q.Filter(spec, filter.Value); err != nil {
			return nil, queryError(err)
		}
	}
	return q, nil
}

// byKey narrows the request's query to the given encoded keys.
func (res *Resource) byKey(r *restapi.Request, pks []string) (*datastore.Query, error) {
	q, err := res.Query(r)
	if err != nil {
		return nil, err
	}
	q, err = q.Filter(datastore.KeyProperty+" IN", pks)
	return q, queryError(err)
}

// Length counts the entities matching the request's lookups a batch
// at a time, paging by key.  A "max" parameter stops the count once
// it is reached.
func (res *Resource) Length(r *restapi.Request) (interface{}, error) {
	max, err := r.IntParam("max", 0)
	if err != nil {
		return nil, err
	}
	q, err := res.Query(r)
	if err != nil {
		return nil, err
	}
	if q, err = q.Order(datastore.KeyProperty); err != nil {
		return nil, err
	}
	if q, err = res.filtered(r, q); err != nil {
		return nil, err
	}

	total, err := q.Count(batchSize)
	if err != nil {
		return nil, err
	}
	last := total
	next := q
	for last == batchSize {
		if max > 0 && total >= max {
			break
		}
		objs, err := next.Fetch(1, batchSize-1)
		if err != nil {
			return nil, err
		}
		if len(objs) == 0 {
			break
		}
		if next, err = q.Filter(datastore.KeyProperty+" >", objs[0].PK); err != nil {
			return nil, err
		}
		if last, err = next.Count(batchSize); err != nil {
			return nil, err
		}
		total += last
	}
	if max > 0 && total >= max {
		return max, nil
	}
	return total, nil
}

// List returns one ordered page of the entities matching the
// request's lookups.
func (res *Resource) List(r *restapi.Request) (interface{}, error) {
	ordering, err := res.Ordering(r.Query)
	if err != nil {
		return nil, err
	}
	offset, limit, err := res.Page(r)
	if err != nil {
		return nil, err
	}
	q, err := res.Query(r)
	if err != nil {
		return nil, err
	}
	for _, o := range ordering {
		if q, err = q.Order(o); err != nil {
			return nil, queryError(err)
		}
	}
	if q, err = res.filtered(r, q); err != nil {
		return nil, err
	}
	objs, err := q.Fetch(limit, offset)
	if err != nil {
		return nil, err
	}
	return res.SerializeAll(objs), nil
}

// Show returns the entities named by the request's pk parameters, up
// to the resource's object limit.
func (res *Resource) Show(r *restapi.Request) (interface{}, error) {
	pks, err := res.RequirePKs(r)
	if err != nil {
		return nil, err
	}
	q, err := res.byKey(r, pks)
	if err != nil {
		return nil, err
	}
	objs, err := q.Fetch(res.MaxObjects, 0)
	if err != nil {
		return nil, err
	}
	return res.SerializeAll(objs), nil
}

// Create validates the request body and stores a new entity.
func (res *Resource) Create(r *restapi.Request) (interface{}, error) {
	obj, err := res.Construct(r, nil)
	if err != nil {
		return nil, err
	}
	if err = res.Store.Put(obj); err != nil {
		return nil, queryError(err)
	}
	return res.reload(obj)
}

// reload reads back a stored entity, so the response shows what was
// kept.
func (res *Resource) reload(obj *model.Object) (interface{}, error) {
	saved, err := res.Store.Get(res.Model, model.ToString(obj.PK))
	if err != nil {
		return nil, err
	}
	return res.Serialize(saved), nil
}

// Update changes the entity named by the request's only pk parameter.
func (res *Resource) Update(r *restapi.Request) (interface{}, error) {
	pk, err := res.RequirePK(r)
	if err != nil {
		return nil, err
	}
	if _, err = r.DataMap(); err != nil {
		return nil, err
	}
	q, err := res.Query(r)
	if err != nil {
		return nil, err
	}
	if q, err = q.Filter(datastore.KeyProperty+" =", pk); err != nil {
		return nil, queryError(err)
	}
	instance, err := q.Get()
	if err != nil {
		return nil, queryError(err)
	}
	obj, err := res.Construct(r, instance)
	if err != nil {
		return nil, err
	}
	if err = res.Store.Put(obj); err != nil {
		return nil, queryError(err)
	}
	return res.reload(obj)
}

// Destroy deletes the entities named by the request's pk parameters,
// a batch at a time until none are left.
func (res *Resource) Destroy(r *restapi.Request) (interface{}, error) {
	pks, err := res.RequirePKs(r)
	if err != nil {
		return nil, err
	}
	q, err := res.byKey(r, pks)
	if err != nil {
		return nil, err
	}
	for n := batchSize; n == batchSize; {
		objs, err := q.Fetch(batchSize, 0)
		if err != nil {
			return nil, err
		}
		keys := make([]string, len(objs))
		for i, obj := range objs {
			keys[i] = model.ToString(obj.PK)
		}
		if err = res.Store.Delete(keys...); err != nil {
			return nil, err
		}
		n = len(objs)
	}
	return nil, nil
}
