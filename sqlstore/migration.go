// Copyright 2015 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package sqlstore

import (
	"strings"

	"github.com/diffeo/go-modelrest/model"
	"github.com/rubenv/sql-migrate"
)

// This file maintains the database migration code.  See
// https://github.com/rubenv/sql-migrate for details of what goes in
// here.  Rather than shipping SQL files, one migration per app is
// generated from the model registry.  This runs "outside" the normal
// request flow, either at initial startup or from an external tool.

// joinTable returns the table and column names that hold the
// many-to-many field f.  A model related to itself uses from_ and to_
// prefixes to keep the columns apart.
func joinTable(f *model.Field) (table, from, to string) {
	m, rm := f.Model(), f.RelatedModel()
	table = m.Table + "_" + f.Name
	from = m.ModuleName() + "_id"
	to = rm.ModuleName() + "_id"
	if from == to {
		from, to = "from_"+from, "to_"+to
	}
	return
}

// createStatements returns the statements that create the tables of
// m, including its many-to-many join tables.
func (s *Store) createStatements(m *model.Model) []string {
	var (
		columns    []string
		statements []string
		indexes    []string
	)
	for _, f := range m.LocalFields() {
		col := quote(f.Column) + " "
		if f.PrimaryKey && f.Class == "AutoField" {
			columns = append(columns, col+s.dialect.autoKey())
			continue
		}
		col += s.dialect.columnType(f)
		if f.PrimaryKey {
			col += " PRIMARY KEY"
		} else {
			if !f.Null {
				col += " NOT NULL"
			}
			if f.Unique {
				col += " UNIQUE"
			}
		}
		columns = append(columns, col)
		if !f.PrimaryKey && !f.Unique && (f.DBIndex || f.Kind() == model.ToOneKind) {
			indexes = append(indexes, "CREATE INDEX IF NOT EXISTS "+
				quote(m.Table+"_"+f.Column)+" ON "+quote(m.Table)+"("+quote(f.Column)+")")
		}
	}
	for _, names := range m.UniqueTogether {
		cols := make([]string, 0, len(names))
		for _, name := range names {
			if f, ok := m.Field(name); ok {
				cols = append(cols, quote(f.Column))
			}
		}
		if len(cols) > 0 {
			columns = append(columns, "UNIQUE("+strings.Join(cols, ", ")+")")
		}
	}
	statements = append(statements, "CREATE TABLE IF NOT EXISTS "+quote(m.Table)+
		"("+strings.Join(columns, ", ")+")")
	statements = append(statements, indexes...)

	for _, f := range m.ManyToMany() {
		if f.RelatedModel() == nil {
			continue
		}
		table, from, to := joinTable(f)
		key := s.dialect.columnType(&model.Field{Class: "IntegerField"})
		statements = append(statements,
			"CREATE TABLE IF NOT EXISTS "+quote(table)+"("+
				quote(from)+" "+key+" NOT NULL, "+
				quote(to)+" "+key+" NOT NULL, "+
				"UNIQUE("+quote(from)+", "+quote(to)+"))",
			"CREATE INDEX IF NOT EXISTS "+quote(table+"_"+to)+" ON "+quote(table)+"("+quote(to)+")")
	}
	return statements
}

// dropStatements returns the statements that remove the tables of m.
func (s *Store) dropStatements(m *model.Model) []string {
	var statements []string
	for _, f := range m.ManyToMany() {
		if f.RelatedModel() == nil {
			continue
		}
		table, _, _ := joinTable(f)
		statements = append(statements, "DROP TABLE IF EXISTS "+quote(table))
	}
	return append(statements, "DROP TABLE IF EXISTS "+quote(m.Table))
}

// Migrations returns one migration for each app that has relational
// models.
func (s *Store) Migrations() []*migrate.Migration {
	var migrations []*migrate.Migration
	for _, app := range s.Models.Apps() {
		mig := &migrate.Migration{Id: "modelrest_" + app.Label}
		for _, m := range app.Models {
			if m.Datastore {
				continue
			}
			mig.Up = append(mig.Up, s.createStatements(m)...)
		}
		for i := len(app.Models) - 1; i >= 0; i-- {
			if m := app.Models[i]; !m.Datastore {
				mig.Down = append(mig.Down, s.dropStatements(m)...)
			}
		}
		if len(mig.Up) > 0 {
			migrations = append(migrations, mig)
		}
	}
	return migrations
}

func (s *Store) migrationSource() migrate.MigrationSource {
	return &migrate.MemoryMigrationSource{Migrations: s.Migrations()}
}

// Upgrade creates the tables of every relational model that does not
// have them yet.
func (s *Store) Upgrade() error {
	_, err := migrate.Exec(s.db, s.dialect.String(), s.migrationSource(), migrate.Up)
	return err
}

// Drop clears a database by running all of the migrations in reverse,
// ultimately resulting in dropping all of the tables.
func (s *Store) Drop() error {
	_, err := migrate.Exec(s.db, s.dialect.String(), s.migrationSource(), migrate.Down)
	return err
}
