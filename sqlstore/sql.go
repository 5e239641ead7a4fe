// Copyright 2015-2016 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package sqlstore

// This file contains generic support code for database/sql.  There
// are three main things in here:
//
// (1) withTx() to do work in a transaction that can be retried, and
//     scanRows() to loop over the results of a multi-row SELECT
//
// (2) Helpers to build SQL SELECT, UPDATE and DELETE statements
//     (dealing entirely in strings)
//
// (3) Helpers to manage potentially long query parameter lists:
//     queryParams is a parameter list that produces the dialect's
//     placeholders, and fieldList is an INSERT/UPDATE key=value list

import (
	"database/sql"
	"strings"

	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
)

// retryable returns true for errors that mean the transaction lost a
// race with another one and should simply be run again.
func retryable(err error) bool {
	switch e := err.(type) {
	case *pq.Error:
		return e.Code == "40001"
	case sqlite3.Error:
		return e.Code == sqlite3.ErrBusy || e.Code == sqlite3.ErrLocked
	}
	return false
}

// withTx calls some function with a database/sql transaction object.
// If f panics or returns a non-nil error, rolls the transaction back;
// otherwise commits it before returning.  Returns the error value from
// f, or some other error related to transaction management.
func (s *Store) withTx(readOnly bool, f func(*sql.Tx) error) (err error) {
	var (
		tx   *sql.Tx
		done bool
	)

	// If we have a failure, roll back; and if that rollback fails
	// and we don't yet have an error, set the error
	defer func() {
		if tx != nil && !done {
			err2 := tx.Rollback()
			if err == nil {
				err = err2
			}
		}
	}()

	// Run in a loop, repeating the work on serialization errors
	for {
		tx, err = s.db.Begin()
		if err != nil {
			return
		}

		if s.dialect == postgresDialect {
			level := "REPEATABLE READ"
			if readOnly {
				level += " READ ONLY"
			}
			_, err = tx.Exec("SET TRANSACTION ISOLATION LEVEL " + level)
			if err != nil {
				return
			}
		}

		// Call the callback function
		err = f(tx)

		// If that succeeded, commit
		if err == nil {
			err = tx.Commit()
			done = true
		}

		if retryable(err) {
			err = tx.Rollback()
			if err == sql.ErrTxDone {
				// Already rolled back; not an error
				err = nil
			} else if err != nil {
				return
			}
			tx = nil
			done = false
			continue
		}

		break
	}

	return
}

// scanRows runs an SQL query and calls a function for each row in the
// result.  The callback function should only call the Scan() method on
// the provided Rows object; this function will take care of advancing
// through the list of rows and closing the iterator as required.
func scanRows(rows *sql.Rows, f func() error) (err error) {
	var done bool
	defer func() {
		if !done {
			err2 := rows.Close()
			if err == nil {
				err = err2
			}
		}
	}()

	for rows.Next() {
		err = f()
		if err != nil {
			return
		}
	}
	done = true
	err = rows.Err()
	return
}

// queryAndScan runs query on tx with params, and calls f for each row
// in it.  The rows are closed before it returns, so the transaction
// can be used again.
func queryAndScan(tx *sql.Tx, query string, params *queryParams, f func(*sql.Rows) error) error {
	rows, err := tx.Query(query, params.values...)
	if err != nil {
		return err
	}
	return scanRows(rows, func() error {
		return f(rows)
	})
}

// execInTx runs an SQL statement on tx with params, returning the
// number of rows it affected.
func execInTx(tx *sql.Tx, query string, params *queryParams) (int64, error) {
	result, err := tx.Exec(query, params.values...)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// quote quotes an SQL identifier.
func quote(name string) string {
	return `"` + strings.Replace(name, `"`, `""`, -1) + `"`
}

// buildSelect constructs a simple SQL SELECT statement by string
// concatenation.  All of the conditions are ANDed together.
func buildSelect(outputs, tables, conditions []string) string {
	query := "SELECT "
	query += strings.Join(outputs, ", ")
	query += " FROM "
	query += strings.Join(tables, ", ")
	if len(conditions) > 0 {
		query += " WHERE "
		query += strings.Join(conditions, " AND ")
	}
	return query
}

// buildUpdate constructs a simple SQL UPDATE statement by string
// concatenation.  All of the conditions are ANDed together.
func buildUpdate(table string, changes, conditions []string) string {
	query := "UPDATE " + table
	if len(changes) > 0 {
		query += " SET " + strings.Join(changes, ", ")
	}
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	return query
}

// buildDelete constructs a simple SQL DELETE statement.
func buildDelete(table string, conditions []string) string {
	query := "DELETE FROM " + table
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	return query
}

// queryParams wraps a list of query parameters.
type queryParams struct {
	dialect dialect
	values  []interface{}
}

// Param adds a parameter to the query parameter list, returning its
// placeholder.
func (qp *queryParams) Param(param interface{}) string {
	qp.values = append(qp.values, param)
	return qp.dialect.placeholder(len(qp.values))
}

// List adds several parameters, returning a parenthesized list of
// their placeholders for an IN clause.
func (qp *queryParams) List(params []interface{}) string {
	holders := make([]string, len(params))
	for i, param := range params {
		holders[i] = qp.Param(param)
	}
	return "(" + strings.Join(holders, ", ") + ")"
}

// fieldPair is a pair of values in a fieldList.
type fieldPair struct {
	Field string
	Value string
}

// AsEquals converts a pair into a "field=value" SQL fragment.
func (fp fieldPair) AsEquals() string {
	return fp.Field + "=" + fp.Value
}

// fieldList is a list of "field=value" pairs as appears in SQL INSERT
// and UPDATE statements.
type fieldList struct {
	Fields []fieldPair
}

// Add adds a name and dynamic value to the field list.
func (f *fieldList) Add(qp *queryParams, field string, value interface{}) {
	f.Fields = append(f.Fields, fieldPair{Field: field, Value: qp.Param(value)})
}

func (f fieldList) mapFields(mf func(fp fieldPair) string) []string {
	result := make([]string, len(f.Fields))
	for i, field := range f.Fields {
		result[i] = mf(field)
	}
	return result
}

// InsertStatement produces a syntactically complete SQL INSERT
// statement.  A list with no fields inserts the column defaults.
func (f fieldList) InsertStatement(table string) string {
	if len(f.Fields) == 0 {
		return "INSERT INTO " + table + " DEFAULT VALUES"
	}
	names := f.mapFields(func(fp fieldPair) string { return fp.Field })
	values := f.mapFields(func(fp fieldPair) string { return fp.Value })
	return "INSERT INTO " + table + "(" + strings.Join(names, ", ") + ") VALUES(" + strings.Join(values, ", ") + ")"
}

// UpdateChanges converts a field list into a list of "field=value"
// statements, suitable for the "changes" part of an UPDATE statement.
func (f fieldList) UpdateChanges() []string {
	return f.mapFields(func(fp fieldPair) string { return fp.AsEquals() })
}
