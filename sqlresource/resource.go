// Copyright 2015 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

// Package sqlresource serves relational models kept in a sqlstore.
//
//     store, err := sqlstore.Open("sqlite3", "polls.db", model.Default)
//     ...
//     site.Register(sqlresource.Constructor(store), restapi.Options{
//             Model: poll,
//     })
//
// Lookup parameters follow the store's "field__lookup" syntax, and may
// cross one or more relationships.
package sqlresource

import (
	"github.com/diffeo/go-modelrest/model"
	"github.com/diffeo/go-modelrest/restapi"
	"github.com/diffeo/go-modelrest/sqlstore"
)

// Resource is a model resource over a relational store.
type Resource struct {
	*restapi.ModelBase

	// Store holds the objects.
	Store *sqlstore.Store
}

// Constructor returns a restapi constructor that builds resources
// over store.
func Constructor(store *sqlstore.Store) restapi.Constructor {
	return func(site *restapi.Site, opts restapi.Options) (restapi.Resource, error) {
		return New(site, store, opts)
	}
}

// New builds a relational model resource.
func New(site *restapi.Site, store *sqlstore.Store, opts restapi.Options) (*Resource, error) {
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

// lookupError turns a bad lookup into a client error.
func lookupError(err error) error {
	switch err.(type) {
	case sqlstore.FieldError:
		return restapi.ErrBadRequest{Err: err}
	case sqlstore.ErrDoesNotExist:
		return restapi.ErrNotFound{Err: err}
	}
	return err
}

// QuerySet returns the objects the request's user may see.
func (res *Resource) QuerySet(r *restapi.Request) (*sqlstore.QuerySet, error) {
	qs := res.Store.Query(res.Model)
	if field, pk, ok := res.Owner(r); ok {
		var err error
		if qs, err = qs.Filter(field, pk); err != nil {
			return nil, err
		}
	}
	return qs, nil
}

// filtered applies the request's lookup parameters.
func (res *Resource) filtered(r *restapi.Request) (*sqlstore.QuerySet, error) {
	qs, err := res.QuerySet(r)
	if err != nil {
		return nil, err
	}
	for _, filter := range res.Filters(r.Query) {
		if qs, err = qs.Filter(filter.Key, filter.Value); err != nil {
			return nil, lookupError(err)
		}
	}
	return qs, nil
}

// byPK narrows the request's query set to the given primary keys.
func (res *Resource) byPK(r *restapi.Request, pks []string) (*sqlstore.QuerySet, error) {
	qs, err := res.QuerySet(r)
	if err != nil {
		return nil, err
	}
	keys := make([]interface{}, len(pks))
	for i, pk := range pks {
		keys[i] = pk
	}
	qs, err = qs.Filter("pk__in", keys)
	return qs, lookupError(err)
}

// Length counts the objects matching the request's lookups.
func (res *Resource) Length(r *restapi.Request) (interface{}, error) {
	qs, err := res.filtered(r)
	if err != nil {
		return nil, err
	}
	return qs.Count()
}

// List returns one ordered page of the objects matching the request's
// lookups.
func (res *Resource) List(r *restapi.Request) (interface{}, error) {
	ordering, err := res.Ordering(r.Query)
	if err != nil {
		return nil, err
	}
	offset, limit, err := res.Page(r)
	if err != nil {
		return nil, err
	}
	qs, err := res.filtered(r)
	if err != nil {
		return nil, err
	}
	if len(ordering) > 0 {
		if qs, err = qs.OrderBy(ordering...); err != nil {
			return nil, lookupError(err)
		}
	}
	objs, err := qs.Slice(offset, limit).All()
	if err != nil {
		return nil, err
	}
	return res.SerializeAll(objs), nil
}

// Show returns the objects named by the request's pk parameters, up
// to the resource's object limit.
func (res *Resource) Show(r *restapi.Request) (interface{}, error) {
	pks, err := res.RequirePKs(r)
	if err != nil {
		return nil, err
	}
	qs, err := res.byPK(r, pks)
	if err != nil {
		return nil, err
	}
	objs, err := qs.Slice(0, res.MaxObjects).All()
	if err != nil {
		return nil, err
	}
	return res.SerializeAll(objs), nil
}

// reload reads back a saved object, so the response shows what was
// stored.
func (res *Resource) reload(obj *model.Object) (interface{}, error) {
	qs, err := res.Store.Query(res.Model).Filter("pk", obj.PK)
	if err != nil {
		return nil, err
	}
	saved, err := qs.Get()
	if err != nil {
		return nil, err
	}
	return res.Serialize(saved), nil
}

// Create validates the request body and stores a new object.
func (res *Resource) Create(r *restapi.Request) (interface{}, error) {
	obj, err := res.Construct(r, nil)
	if err != nil {
		return nil, err
	}
	if err = res.Store.Insert(obj); err != nil {
		return nil, err
	}
	return res.reload(obj)
}

// Update changes the object named by the request's only pk parameter.
func (res *Resource) Update(r *restapi.Request) (interface{}, error) {
	pk, err := res.RequirePK(r)
	if err != nil {
		return nil, err
	}
	if _, err = r.DataMap(); err != nil {
		return nil, err
	}
	qs, err := res.byPK(r, []string{pk})
	if err != nil {
		return nil, err
	}
	instance, err := qs.Get()
	if err != nil {
		return nil, lookupError(err)
	}
	obj, err := res.Construct(r, instance)
	if err != nil {
		return nil, err
	}
	if err = res.Store.Update(obj); err != nil {
		return nil, lookupError(err)
	}
	return res.reload(obj)
}

// Destroy deletes the objects named by the request's pk parameters.
func (res *Resource) Destroy(r *restapi.Request) (interface{}, error) {
	pks, err := res.RequirePKs(r)
	if err != nil {
		return nil, err
	}
	qs, err := res.byPK(r, pks)
	if err != nil {
		return nil, err
	}
	if _, err = qs.Delete(); err != nil {
		return nil, err
	}
	return nil, nil
}
