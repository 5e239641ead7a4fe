// Copyright 2015 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

// Package sqlstore keeps relational models in an SQL database.
//
// Tables are created from the model registry with Upgrade.  Objects
// are read through a QuerySet, which understands the usual
// "field__lookup" filter syntax, and written with Save and Delete.
// PostgreSQL (github.com/lib/pq) and SQLite
// (github.com/mattn/go-sqlite3) are supported.
//
// The store enforces relationships itself rather than through foreign
// key constraints: deleting an object deletes the objects whose
// non-null foreign keys point at it, and clears the nullable ones.
package sqlstore

import (
	"database/sql"
	"strings"

	"github.com/diffeo/go-modelrest/model"

	// Register the database drivers
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// Store is a relational store for the models of one registry.
type Store struct {
	db      *sql.DB
	dialect dialect

	// Models is the registry the tables are built from.
	Models *model.Registry
}

// Open connects to a database.  driver is "postgres" or "sqlite3".
// For postgres, an address beginning "//" is taken as a URL without
// its scheme.  For sqlite3, the pool is limited to one connection so
// that in-memory databases are shared.
func Open(driver, address string, models *model.Registry) (*Store, error) {
	d, err := dialectFor(driver)
	if err != nil {
		return nil, err
	}
	if d == postgresDialect && strings.HasPrefix(address, "//") {
		address = "postgres:" + address
	}
	db, err := sql.Open(driver, address)
	if err != nil {
		return nil, err
	}
	if d == sqliteDialect {
		db.SetMaxOpenConns(1)
	}
	return &Store{db: db, dialect: d, Models: models}, nil
}

// New creates a store over an existing database handle.
func New(db *sql.DB, driver string, models *model.Registry) (*Store, error) {
	d, err := dialectFor(driver)
	if err != nil {
		return nil, err
	}
	return &Store{db: db, dialect: d, Models: models}, nil
}

// DB returns the underlying database handle.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Query returns a query set over every object of m.
func (s *Store) Query(m *model.Model) *QuerySet {
	return &QuerySet{store: s, model: m, limit: -1}
}

// params starts a new query parameter list.
func (s *Store) params() *queryParams {
	return &queryParams{dialect: s.dialect}
}
