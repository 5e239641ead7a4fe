// Copyright 2015 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

// Package backend provides a standard way to open the object stores
// based on command-line flags.
package backend

import (
	"errors"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/diffeo/go-modelrest/datastore"
	"github.com/diffeo/go-modelrest/model"
	"github.com/diffeo/go-modelrest/restapi"
	"github.com/diffeo/go-modelrest/sqlstore"
)

// Backend describes user-visible parameters to store objects.  This
// implements the flag.Value interface, and so a typical use is
//
//     func main() {
//         backend := backend.Backend{"memory", ""}
//         flag.Var(&backend, "backend", "impl:address of relational storage")
//         flag.Parse()
//         store, err := backend.SQL(model.Default)
//     }
//
// The relational implementations are "memory", "sqlite3" and
// "postgres".  The entity implementations are "memory" and "bolt".
type Backend struct {
	// Implementation holds the name of the implementation; for
	// instance, "memory".
	Implementation string

	// Address holds some backend-specific address, such as a
	// database connect string.
	Address string
}

var sqlImplementations = map[string]bool{
	"memory":   true,
	"sqlite3":  true,
	"postgres": true,
}

var entityImplementations = map[string]bool{
	"memory": true,
	"bolt":   true,
}

// ErrUnknownBackend is returned for an implementation name no store
// knows.
type ErrUnknownBackend struct {
	Implementation string
}

func (e ErrUnknownBackend) Error() string {
	return "unknown backend " + e.Implementation
}

// SQL opens a relational store holding models and creates any missing
// tables.  If b.Implementation is "memory", every call creates an
// independent in-process database.
func (b *Backend) SQL(models *model.Registry) (*sqlstore.Store, error) {
	var (
		store *sqlstore.Store
		err   error
	)
	switch b.Implementation {
	case "memory":
		store, err = sqlstore.Open("sqlite3", ":memory:", models)
	case "sqlite3", "postgres":
		if b.Address == "" {
			return nil, errors.New(b.Implementation + " backend needs an address")
		}
		store, err = sqlstore.Open(b.Implementation, b.Address, models)
	default:
		return nil, ErrUnknownBackend{b.Implementation}
	}
	if err != nil {
		return nil, err
	}
	if err = store.Upgrade(); err != nil {
		_ = store.Close()
		return nil, err
	}
	return store, nil
}

// Entities opens an entity datastore holding models.  The "memory"
// implementation keeps its database in a temporary file that is
// removed when the store is closed.
func (b *Backend) Entities(models *model.Registry) (*Datastore, error) {
	switch b.Implementation {
	case "memory":
		dir, err := ioutil.TempDir("", "modelrest")
		if err != nil {
			return nil, err
		}
		store, err := datastore.Open(filepath.Join(dir, "entities.db"), models)
		if err != nil {
			_ = os.RemoveAll(dir)
			return nil, err
		}
		return &Datastore{Store: store, dir: dir}, nil
	case "bolt":
		if b.Address == "" {
			return nil, errors.New("bolt backend needs a file name")
		}
		store, err := datastore.Open(b.Address, models)
		if err != nil {
			return nil, err
		}
		return &Datastore{Store: store}, nil
	}
	return nil, ErrUnknownBackend{b.Implementation}
}

// Datastore is an open entity store.
type Datastore struct {
	*datastore.Store
	dir string
}

// Close closes the store and removes its temporary directory, if any.
func (d *Datastore) Close() error {
	err := d.Store.Close()
	if d.dir != "" {
		if rerr := os.RemoveAll(d.dir); err == nil {
			err = rerr
		}
	}
	return err
}

// String renders a backend description as a string.
func (b *Backend) String() string {
	if b.Address == "" {
		return b.Implementation
	}
	return b.Implementation + ":" + b.Address
}

func (b *Backend) parse(param string, known map[string]bool) error {
	if param == "" {
		return errors.New("must specify a backend type")
	}
	parts := strings.SplitN(param, ":", 2)
	if !known[parts[0]] {
		return ErrUnknownBackend{parts[0]}
	}
	b.Implementation = parts[0]
	b.Address = ""
	if len(parts) == 2 {
		b.Address = parts[1]
	}
	return nil
}

// Set parses a string into an existing backend description.  The
// string should be of the form "implementation:address", where
// address can be any string.  Set checks to see if the provided
// implementation is a known relational implementation, and returns
// an appropriate error if not.
//
// This is part of the flag.Value interface.  Note that it does not
// validate the b.Address part of the string or attempt to actually
// make a connection.
func (b *Backend) Set(param string) error {
	return b.parse(param, sqlImplementations)
}

// Entity is a Backend whose flag value names an entity
// implementation.
type Entity struct {
	Backend
}

// Set parses "implementation:address" for an entity store.
func (e *Entity) Set(param string) error {
	return e.parse(param, entityImplementations)
}

// Stores are the open stores app registration hooks build resources
// over.
type Stores struct {
	SQL      *sqlstore.Store
	Entities *datastore.Store
}

var attached = struct {
	sync.Mutex
	stores map[*restapi.Site]Stores
}{stores: make(map[*restapi.Site]Stores)}

// Attach makes stores available to the hooks run for site.
func Attach(site *restapi.Site, stores Stores) {
	attached.Lock()
	defer attached.Unlock()
	attached.stores[site] = stores
}

// ErrNoStore is returned by For when the store an app needs was not
// attached to its site.
var ErrNoStore = errors.New("no store is attached to the site")

// For returns the stores attached to site.
func For(site *restapi.Site) Stores {
	attached.Lock()
	defer attached.Unlock()
	return attached.stores[site]
}
