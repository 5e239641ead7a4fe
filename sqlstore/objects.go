// Copyright 2015 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package sqlstore

import (
	"database/sql"
	"fmt"

	"github.com/diffeo/go-modelrest/model"
)

// maxBatch caps the number of parameters in one IN list.
const maxBatch = 500

// batches calls f with successive slices of at most maxBatch keys.
func batches(keys []interface{}, f func([]interface{}) error) error {
	for len(keys) > 0 {
		n := len(keys)
		if n > maxBatch {
			n = maxBatch
		}
		if err := f(keys[:n]); err != nil {
			return err
		}
		keys = keys[n:]
	}
	return nil
}

// Save writes obj, inserting it if it has no primary key and updating
// it otherwise.  A new object gets its assigned primary key.
func (s *Store) Save(obj *model.Object) error {
	if obj.PK == nil {
		return s.Insert(obj)
	}
	return s.Update(obj)
}

// Insert adds obj as a new row.  If obj already has a primary key it
// is used; otherwise the database assigns one and obj.PK is set.
func (s *Store) Insert(obj *model.Object) error {
	m := obj.Model
	if err := checkRelational(m); err != nil {
		return err
	}
	var pk interface{}
	err := s.withTx(false, func(tx *sql.Tx) (err error) {
		pk, err = s.insert(tx, obj)
		return
	})
	if err == nil {
		obj.PK = pk
	}
	return err
}

// Update rewrites the stored row of obj with the values obj holds.
// Fields missing from obj.Values are left alone.  If no row has the
// object's primary key, returns ErrDoesNotExist.
func (s *Store) Update(obj *model.Object) error {
	m := obj.Model
	if err := checkRelational(m); err != nil {
		return err
	}
	return s.withTx(false, func(tx *sql.Tx) error {
		return s.update(tx, obj)
	})
}

func checkRelational(m *model.Model) error {
	if m == nil || m.Datastore || m.PK() == nil {
		return fmt.Errorf("sqlstore: %v is not a relational model", m)
	}
	return nil
}

// localChanges builds the field list of obj's stored columns.
func (s *Store) localChanges(qp *queryParams, obj *model.Object) (fieldList, error) {
	var fl fieldList
	for _, f := range obj.Model.LocalFields() {
		if f.PrimaryKey {
			continue
		}
		v, present := obj.Values[f.Name]
		if !present {
			continue
		}
		cv, err := columnValue(f, v)
		if err != nil {
			return fl, err
		}
		fl.Add(qp, quote(f.Column), cv)
	}
	return fl, nil
}

func (s *Store) insert(tx *sql.Tx, obj *model.Object) (interface{}, error) {
	m := obj.Model
	pkField := m.PK()
	qp := s.params()
	var explicit interface{}
	if obj.PK != nil {
		var err error
		explicit, err = keyValue(m, obj.PK)
		if err != nil {
			return nil, err
		}
	}
	fl, err := s.localChanges(qp, obj)
	if err != nil {
		return nil, err
	}
	if explicit != nil {
		fl.Add(qp, quote(pkField.Column), explicit)
	}
	stmt := fl.InsertStatement(quote(m.Table))

	var pk interface{}
	switch {
	case explicit != nil:
		if _, err = tx.Exec(stmt, qp.values...); err != nil {
			return nil, err
		}
		pk = explicit
		if s.dialect == postgresDialect && pkField.Class == "AutoField" {
			// Keep the sequence ahead of explicitly chosen keys
			_, err = tx.Exec("SELECT setval(pg_get_serial_sequence($1, $2), (SELECT MAX(" +
				quote(pkField.Column) + ") FROM " + quote(m.Table) + "))", m.Table, pkField.Column)
			if err != nil {
				return nil, err
			}
		}
	case s.dialect == postgresDialect:
		var raw interface{}
		err = tx.QueryRow(stmt+" RETURNING "+quote(pkField.Column), qp.values...).Scan(&raw)
		if err != nil {
			return nil, err
		}
		if pk, err = fieldValue(pkField, raw); err != nil {
			return nil, err
		}
	default:
		result, err := tx.Exec(stmt, qp.values...)
		if err != nil {
			return nil, err
		}
		id, err := result.LastInsertId()
		if err != nil {
			return nil, err
		}
		pk = id
	}

	if err := s.storeManyToMany(tx, obj, pk); err != nil {
		return nil, err
	}
	return pk, nil
}

func (s *Store) update(tx *sql.Tx, obj *model.Object) error {
	m := obj.Model
	pk, err := keyValue(m, obj.PK)
	if err != nil {
		return err
	}
	qp := s.params()
	fl, err := s.localChanges(qp, obj)
	if err != nil {
		return err
	}
	cond := quote(m.PK().Column) + " = " + qp.Param(pk)
	var found bool
	if len(fl.Fields) > 0 {
		n, err := execInTx(tx, buildUpdate(quote(m.Table), fl.UpdateChanges(), []string{cond}), qp)
		if err != nil {
			return err
		}
		found = n > 0
	} else {
		var one int
		err = tx.QueryRow(buildSelect([]string{"1"}, []string{quote(m.Table)}, []string{cond}), qp.values...).Scan(&one)
		if err != nil && err != sql.ErrNoRows {
			return err
		}
		found = err == nil
	}
	if !found {
		return ErrDoesNotExist{Model: m}
	}
	return s.storeManyToMany(tx, obj, pk)
}

// storeManyToMany replaces the join rows of every many-to-many field
// obj has a value for.
func (s *Store) storeManyToMany(tx *sql.Tx, obj *model.Object, pk interface{}) error {
	for _, f := range obj.Model.ManyToMany() {
		v, present := obj.Values[f.Name]
		if !present || f.RelatedModel() == nil {
			continue
		}
		table, from, to := joinTable(f)
		qp := s.params()
		_, err := execInTx(tx, buildDelete(quote(table), []string{quote(from) + " = " + qp.Param(pk)}), qp)
		if err != nil {
			return err
		}
		seen := make(map[interface{}]bool)
		for _, item := range splitValues(v) {
			key, err := keyValue(f.RelatedModel(), item)
			if err != nil {
				return err
			}
			if seen[key] {
				continue
			}
			seen[key] = true
			qp := s.params()
			var fl fieldList
			fl.Add(qp, quote(from), pk)
			fl.Add(qp, quote(to), key)
			if _, err := execInTx(tx, fl.InsertStatement(quote(table)), qp); err != nil {
				return err
			}
		}
	}
	return nil
}

// loadManyToMany fills in the many-to-many fields of objs.
func (s *Store) loadManyToMany(tx *sql.Tx, m *model.Model, objs []*model.Object) error {
	fields := m.ManyToMany()
	if len(fields) == 0 || len(objs) == 0 {
		return nil
	}
	byPK := make(map[interface{}]*model.Object, len(objs))
	pks := make([]interface{}, len(objs))
	for i, obj := range objs {
		byPK[obj.PK] = obj
		pks[i] = obj.PK
	}
	for _, f := range fields {
		for _, obj := range objs {
			obj.Set(f.Name, []interface{}{})
		}
		rm := f.RelatedModel()
		if rm == nil {
			continue
		}
		table, from, to := joinTable(f)
		err := batches(pks, func(batch []interface{}) error {
			qp := s.params()
			query := buildSelect([]string{quote(from), quote(to)}, []string{quote(table)},
				[]string{quote(from) + " IN " + qp.List(batch)}) + " ORDER BY " + quote(from) + ", " + quote(to)
			return queryAndScan(tx, query, qp, func(rows *sql.Rows) error {
				var rawFrom, rawTo interface{}
				if err := rows.Scan(&rawFrom, &rawTo); err != nil {
					return err
				}
				owner, err := fieldValue(m.PK(), rawFrom)
				if err != nil {
					return err
				}
				key, err := fieldValue(rm.PK(), rawTo)
				if err != nil {
					return err
				}
				if obj := byPK[owner]; obj != nil {
					obj.Set(f.Name, append(obj.Values[f.Name].([]interface{}), key))
				}
				return nil
			})
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// deleteCascade deletes the rows of m with the given primary keys.
// Rows whose non-null foreign keys point at them are deleted too, and
// nullable foreign keys pointing at them are cleared.  seen holds the
// keys already being deleted, so that cycles end.
func (s *Store) deleteCascade(tx *sql.Tx, m *model.Model, pks []interface{}, seen map[*model.Model]map[interface{}]bool) error {
	if seen[m] == nil {
		seen[m] = make(map[interface{}]bool)
	}
	var fresh []interface{}
	for _, pk := range pks {
		if !seen[m][pk] {
			seen[m][pk] = true
			fresh = append(fresh, pk)
		}
	}
	if len(fresh) == 0 {
		return nil
	}

	return batches(fresh, func(batch []interface{}) error {
		for _, rel := range m.RelatedObjects() {
			rm, f := rel.Model, rel.Field
			if rm.Datastore {
				continue
			}
			switch f.Kind() {
			case model.ToOneKind:
				qp := s.params()
				cond := quote(f.Column) + " IN " + qp.List(batch)
				if f.Null {
					stmt := buildUpdate(quote(rm.Table), []string{quote(f.Column) + " = NULL"}, []string{cond})
					if _, err := execInTx(tx, stmt, qp); err != nil {
						return err
					}
					continue
				}
				var children []interface{}
				query := buildSelect([]string{quote(rm.PK().Column)}, []string{quote(rm.Table)}, []string{cond})
				err := queryAndScan(tx, query, qp, func(rows *sql.Rows) error {
					var raw interface{}
					if err := rows.Scan(&raw); err != nil {
						return err
					}
					child, err := fieldValue(rm.PK(), raw)
					children = append(children, child)
					return err
				})
				if err != nil {
					return err
				}
				if err := s.deleteCascade(tx, rm, children, seen); err != nil {
					return err
				}
			case model.ToManyKind:
				table, _, to := joinTable(f)
				qp := s.params()
				if _, err := execInTx(tx, buildDelete(quote(table), []string{quote(to) + " IN " + qp.List(batch)}), qp); err != nil {
					return err
				}
			}
		}
		for _, f := range m.ManyToMany() {
			if f.RelatedModel() == nil {
				continue
			}
			table, from, _ := joinTable(f)
			qp := s.params()
			if _, err := execInTx(tx, buildDelete(quote(table), []string{quote(from) + " IN " + qp.List(batch)}), qp); err != nil {
				return err
			}
		}
		qp := s.params()
		_, err := execInTx(tx, buildDelete(quote(m.Table), []string{quote(m.PK().Column) + " IN " + qp.List(batch)}), qp)
		return err
	})
}
