// Copyright 2015 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package sqlstore

import (
	"database/sql"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/diffeo/go-modelrest/model"
)

// Lookups are the comparisons a filter key can end with.  A key with
// no lookup compares for equality.
var Lookups = []string{
	"exact", "iexact",
	"contains", "icontains",
	"gt", "gte", "lt", "lte",
	"in",
	"startswith", "istartswith",
	"endswith", "iendswith",
	"isnull", "range",
}

func isLookup(name string) bool {
	for _, l := range Lookups {
		if l == name {
			return true
		}
	}
	return false
}

// step is one relationship crossed by a filter: either a relation
// field of the current model or a reverse relation into it.
type step struct {
	field *model.Field
	rel   *model.Relation
}

// target returns the model on the far side of the step.
func (st step) target() *model.Model {
	if st.field != nil {
		return st.field.RelatedModel()
	}
	return st.rel.Model
}

// term is one resolved filter condition.
type term struct {
	path   []step
	field  *model.Field
	op     string
	values []interface{}
	negate bool
}

// ordering is one resolved ORDER BY term.
type ordering struct {
	path   []*model.Field
	field  *model.Field
	desc   bool
	random bool
}

// QuerySet selects objects of one model.  QuerySets are immutable:
// every refining method returns a new one.
type QuerySet struct {
	store    *Store
	model    *model.Model
	terms    []term
	ordering []ordering
	offset   int
	limit    int
}

func (q *QuerySet) clone() *QuerySet {
	c := *q
	c.terms = append([]term(nil), q.terms...)
	c.ordering = append([]ordering(nil), q.ordering...)
	return &c
}

// Model returns the model the query set selects.
func (q *QuerySet) Model() *model.Model {
	return q.model
}

// Filter narrows the query set to objects matching a lookup such as
// "question__icontains" or "poll__pk".  value is converted to the
// field's type; string values of "in" and "range" lookups are split
// on commas.  Unknown fields and unconvertible values return a
// FieldError.
func (q *QuerySet) Filter(key string, value interface{}) (*QuerySet, error) {
	t, err := q.resolveTerm(key, value)
	if err != nil {
		return nil, err
	}
	c := q.clone()
	c.terms = append(c.terms, t)
	return c, nil
}

// Exclude narrows the query set to objects not matching a lookup.
func (q *QuerySet) Exclude(key string, value interface{}) (*QuerySet, error) {
	t, err := q.resolveTerm(key, value)
	if err != nil {
		return nil, err
	}
	t.negate = !t.negate
	c := q.clone()
	c.terms = append(c.terms, t)
	return c, nil
}

// OrderBy replaces the ordering of the query set.  Each name is a
// field, optionally prefixed with "-" for descending order, or "?"
// for random order.  Names may follow foreign keys with "__".
func (q *QuerySet) OrderBy(names ...string) (*QuerySet, error) {
	var orderings []ordering
	for _, name := range names {
		o, err := q.resolveOrdering(name)
		if err != nil {
			return nil, err
		}
		orderings = append(orderings, o)
	}
	c := q.clone()
	c.ordering = orderings
	return c, nil
}

// Slice limits the query set to limit objects starting at offset.  A
// negative limit means no limit.
func (q *QuerySet) Slice(offset, limit int) *QuerySet {
	c := q.clone()
	c.offset, c.limit = offset, limit
	return c
}

// fieldNames lists the names a filter key can start with on m.
func fieldNames(m *model.Model) []string {
	names := []string{}
	for _, f := range m.Fields {
		names = append(names, f.Name)
	}
	for _, rel := range m.RelatedObjects() {
		if !rel.Model.Datastore {
			names = append(names, queryName(rel))
		}
	}
	sort.Strings(names)
	return names
}

// queryName is the name filters use for a reverse relation: its
// related name if set, otherwise the related model's module name.
func queryName(rel *model.Relation) string {
	if rel.Field.RelatedName != "" {
		return rel.Field.RelatedName
	}
	return rel.Model.ModuleName()
}

// resolveName finds the field or reverse relation name refers to.
func resolveName(m *model.Model, name string) (step, error) {
	if f, ok := m.Field(name); ok {
		return step{field: f}, nil
	}
	for _, rel := range m.RelatedObjects() {
		if rel.Model.Datastore {
			continue
		}
		if name == queryName(rel) || name == rel.AccessorName() {
			return step{rel: rel}, nil
		}
	}
	return step{}, FieldError{fmt.Sprintf("Cannot resolve keyword '%s' into field. Choices are: %s",
		name, strings.Join(fieldNames(m), ", "))}
}

func (q *QuerySet) resolveTerm(key string, value interface{}) (term, error) {
	var t term
	names := strings.Split(key, "__")
	t.op = "exact"
	if len(names) > 1 && isLookup(names[len(names)-1]) {
		t.op = names[len(names)-1]
		names = names[:len(names)-1]
	}

	cur := q.model
	for i, name := range names {
		st, err := resolveName(cur, name)
		if err != nil {
			return t, err
		}
		last := i == len(names)-1
		if last && st.field != nil && st.field.Kind() != model.ToManyKind {
			t.field = st.field
			break
		}
		if !last && (st.field == nil || !st.field.IsRelation()) && st.rel == nil {
			return t, FieldError{fmt.Sprintf("Join on field '%s' not permitted. Did you misspell '%s' for the lookup type?",
				name, names[i+1])}
		}
		target := st.target()
		if target == nil || target.Datastore || target.PK() == nil {
			return t, FieldError{fmt.Sprintf("Cannot follow '%s' into a non-relational model", name)}
		}
		t.path = append(t.path, st)
		cur = target
		if last {
			// A multi-valued relation compares its primary keys
			t.field = cur.PK()
		}
	}

	var err error
	t.values, err = lookupValues(t.field, t.op, value)
	if err != nil {
		return t, err
	}

	// isnull across a relation asks whether anything is related
	// at all, which the path itself answers
	if t.op == "isnull" && len(t.path) > 0 && t.field.PrimaryKey {
		isNull := t.values[0].(bool)
		t.op, t.values = "related", nil
		if isNull {
			t.negate = !t.negate
		}
	}
	return t, nil
}

// splitValues turns the value of an "in" or "range" lookup into a
// list.
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
		parts := strings.Split(v, ",")
		out := make([]interface{}, len(parts))
		for i, s := range parts {
			out[i] = strings.TrimSpace(s)
		}
		return out
	}
	return []interface{}{value}
}

// lookupValues converts the value of a lookup into the query
// parameters it needs.
func lookupValues(f *model.Field, op string, value interface{}) ([]interface{}, error) {
	convert := func(v interface{}) (interface{}, error) {
		cv, err := columnValue(f, v)
		if err != nil {
			if _, ok := err.(FieldError); ok {
				return nil, err
			}
			return nil, FieldError{fmt.Sprintf("Invalid value %q for field '%s': %v", model.ToString(v), f.Name, err)}
		}
		return cv, nil
	}
	switch op {
	case "iexact", "contains", "icontains", "startswith", "istartswith", "endswith", "iendswith":
		return []interface{}{model.ToString(value)}, nil
	case "isnull":
		b, ok := model.ToBool(value)
		if !ok {
			return nil, FieldError{fmt.Sprintf("The isnull lookup takes a boolean, not %q", model.ToString(value))}
		}
		return []interface{}{b}, nil
	case "in", "range":
		raw := splitValues(value)
		if op == "range" && len(raw) != 2 {
			return nil, FieldError{"The range lookup takes exactly two values"}
		}
		values := make([]interface{}, len(raw))
		for i, v := range raw {
			cv, err := convert(v)
			if err != nil {
				return nil, err
			}
			values[i] = cv
		}
		return values, nil
	}
	if value == nil {
		return []interface{}{nil}, nil
	}
	cv, err := convert(value)
	if err != nil {
		return nil, err
	}
	return []interface{}{cv}, nil
}

func (q *QuerySet) resolveOrdering(name string) (ordering, error) {
	var o ordering
	if name == "?" {
		o.random = true
		return o, nil
	}
	if strings.HasPrefix(name, "-") {
		o.desc = true
		name = name[1:]
	}
	names := strings.Split(name, "__")
	cur := q.model
	for i, n := range names {
		f, ok := cur.Field(n)
		if !ok {
			return o, FieldError{fmt.Sprintf("Cannot resolve keyword '%s' into field. Choices are: %s",
				n, strings.Join(fieldNames(cur), ", "))}
		}
		if f.Kind() == model.ToManyKind {
			return o, FieldError{fmt.Sprintf("Cannot order by the many-to-many field '%s'", n)}
		}
		if i == len(names)-1 {
			o.field = f
			break
		}
		if f.Kind() != model.ToOneKind || f.RelatedModel() == nil || f.RelatedModel().Datastore {
			return o, FieldError{fmt.Sprintf("Join on field '%s' not permitted.", n)}
		}
		o.path = append(o.path, f)
		cur = f.RelatedModel()
	}
	return o, nil
}

// builder collects the parameters and table aliases of one statement.
type builder struct {
	dialect dialect
	qp      *queryParams
	aliases int
}

func (s *Store) builder() *builder {
	return &builder{dialect: s.dialect, qp: s.params()}
}

func (b *builder) alias() string {
	b.aliases++
	return "t" + strconv.Itoa(b.aliases)
}

func column(alias string, f *model.Field) string {
	return alias + "." + quote(f.Column)
}

// compare renders the comparison of expr with the term's values.
func (b *builder) compare(expr string, t term) string {
	d, qp := b.dialect, b.qp
	str := func() string { return t.values[0].(string) }
	switch t.op {
	case "exact":
		if t.values[0] == nil {
			return expr + " IS NULL"
		}
		return expr + " = " + qp.Param(t.values[0])
	case "iexact":
		return "LOWER(" + expr + ") = LOWER(" + qp.Param(t.values[0]) + ")"
	case "gt":
		return expr + " > " + qp.Param(t.values[0])
	case "gte":
		return expr + " >= " + qp.Param(t.values[0])
	case "lt":
		return expr + " < " + qp.Param(t.values[0])
	case "lte":
		return expr + " <= " + qp.Param(t.values[0])
	case "in":
		if len(t.values) == 0 {
			return "1=0"
		}
		return expr + " IN " + qp.List(t.values)
	case "range":
		return expr + " BETWEEN " + qp.Param(t.values[0]) + " AND " + qp.Param(t.values[1])
	case "isnull":
		if t.values[0].(bool) {
			return expr + " IS NULL"
		}
		return expr + " IS NOT NULL"
	case "contains", "icontains":
		caseless := t.op == "icontains"
		return d.match(expr, qp.Param(d.pattern(str(), true, true, caseless)), caseless)
	case "startswith", "istartswith":
		caseless := t.op == "istartswith"
		return d.match(expr, qp.Param(d.pattern(str(), false, true, caseless)), caseless)
	case "endswith", "iendswith":
		caseless := t.op == "iendswith"
		return d.match(expr, qp.Param(d.pattern(str(), true, false, caseless)), caseless)
	case "related":
		return ""
	}
	panic("sqlstore: unknown lookup " + t.op)
}

// condition renders a term against the model m aliased as alias.
func (b *builder) condition(alias string, m *model.Model, t term) string {
	cond := b.path(alias, m, t.path, func(inner string) string {
		return b.compare(column(inner, t.field), t)
	})
	if t.negate {
		return "NOT (" + cond + ")"
	}
	return cond
}

// path renders the subqueries that cross the relationships in path,
// ending with the condition inner produces for the last alias.
func (b *builder) path(alias string, m *model.Model, path []step, inner func(alias string) string) string {
	if len(path) == 0 {
		return inner(alias)
	}
	st := path[0]
	target := st.target()
	next := b.alias()
	rest := b.path(next, target, path[1:], inner)
	and := func(conds ...string) string {
		var out []string
		for _, c := range conds {
			if c != "" {
				out = append(out, c)
			}
		}
		if len(out) == 0 {
			return ""
		}
		return " WHERE " + strings.Join(out, " AND ")
	}
	pk := column(alias, m.PK())
	tpk := column(next, target.PK())
	from := quote(target.Table) + " " + next

	switch {
	case st.field != nil && st.field.Kind() == model.ToOneKind:
		return column(alias, st.field) + " IN (SELECT " + tpk + " FROM " + from + and(rest) + ")"
	case st.field != nil:
		table, fromCol, toCol := joinTable(st.field)
		j := b.alias()
		return pk + " IN (SELECT " + j + "." + quote(fromCol) + " FROM " + quote(table) + " " + j + ", " + from +
			and(j+"."+quote(toCol)+" = "+tpk, rest) + ")"
	case st.rel.Field.Kind() == model.ToOneKind:
		fk := column(next, st.rel.Field)
		return pk + " IN (SELECT " + fk + " FROM " + from + and(fk+" IS NOT NULL", rest) + ")"
	default:
		table, fromCol, toCol := joinTable(st.rel.Field)
		j := b.alias()
		return pk + " IN (SELECT " + j + "." + quote(toCol) + " FROM " + quote(table) + " " + j + ", " + from +
			and(j+"."+quote(fromCol)+" = "+tpk, rest) + ")"
	}
}

// orderExpr renders one ordering term.  Orderings through foreign
// keys become correlated subqueries.
func (b *builder) orderExpr(alias string, o ordering) string {
	if o.random {
		return "RANDOM()"
	}
	expr := b.orderPath(alias, o.path, o.field)
	if o.desc {
		expr += " DESC"
	}
	return expr
}

func (b *builder) orderPath(alias string, path []*model.Field, f *model.Field) string {
	if len(path) == 0 {
		return column(alias, f)
	}
	rm := path[0].RelatedModel()
	next := b.alias()
	return "(SELECT " + b.orderPath(next, path[1:], f) + " FROM " + quote(rm.Table) + " " + next +
		" WHERE " + column(next, rm.PK()) + " = " + column(alias, path[0]) + ")"
}

// where renders the conditions of the query set.
func (q *QuerySet) where(b *builder, alias string) []string {
	conds := make([]string, len(q.terms))
	for i, t := range q.terms {
		conds[i] = b.condition(alias, q.model, t)
	}
	return conds
}

// orderBy renders the ORDER BY clause: the query set's ordering, or
// the model's default ordering, always ending with the primary key so
// that pages are stable.
func (q *QuerySet) orderBy(b *builder, alias string) string {
	orderings := q.ordering
	if len(orderings) == 0 {
		for _, name := range q.model.Ordering {
			if o, err := q.resolveOrdering(name); err == nil {
				orderings = append(orderings, o)
			}
		}
	}
	pk := q.model.PK()
	var exprs []string
	hasPK := false
	for _, o := range orderings {
		exprs = append(exprs, b.orderExpr(alias, o))
		if len(o.path) == 0 && o.field == pk {
			hasPK = true
		}
	}
	if !hasPK {
		exprs = append(exprs, column(alias, pk))
	}
	return " ORDER BY " + strings.Join(exprs, ", ")
}

// Count returns the number of objects matching the filters.  Ordering
// and slicing are ignored.
func (q *QuerySet) Count() (int, error) {
	var count int
	err := q.store.withTx(true, func(tx *sql.Tx) error {
		b := q.store.builder()
		query := buildSelect([]string{"COUNT(*)"}, []string{quote(q.model.Table) + " t"}, q.where(b, "t"))
		return tx.QueryRow(query, b.qp.values...).Scan(&count)
	})
	return count, err
}

// All returns the matching objects, in order, with their many-to-many
// fields filled in.
func (q *QuerySet) All() ([]*model.Object, error) {
	var objs []*model.Object
	err := q.store.withTx(true, func(tx *sql.Tx) (err error) {
		objs, err = q.fetch(tx)
		return
	})
	return objs, err
}

// Get returns the first matching object, or ErrDoesNotExist.
func (q *QuerySet) Get() (*model.Object, error) {
	objs, err := q.Slice(q.offset, 1).All()
	if err != nil {
		return nil, err
	}
	if len(objs) == 0 {
		return nil, ErrDoesNotExist{Model: q.model}
	}
	return objs[0], nil
}

// Delete removes every matching object, and what depends on it, and
// returns the number of matching objects removed.
func (q *QuerySet) Delete() (int, error) {
	var count int
	err := q.store.withTx(false, func(tx *sql.Tx) error {
		pks, err := q.pks(tx)
		if err != nil {
			return err
		}
		count = len(pks)
		return q.store.deleteCascade(tx, q.model, pks, make(map[*model.Model]map[interface{}]bool))
	})
	return count, err
}

func (q *QuerySet) selectStatement(b *builder, outputs []string) string {
	query := buildSelect(outputs, []string{quote(q.model.Table) + " t"}, q.where(b, "t"))
	query += q.orderBy(b, "t")
	query += b.dialect.limit(q.limit, q.offset)
	return query
}

// pks returns the primary keys of the matching objects.
func (q *QuerySet) pks(tx *sql.Tx) ([]interface{}, error) {
	b := q.store.builder()
	pk := q.model.PK()
	query := q.selectStatement(b, []string{column("t", pk)})
	var pks []interface{}
	err := queryAndScan(tx, query, b.qp, func(rows *sql.Rows) error {
		var raw interface{}
		if err := rows.Scan(&raw); err != nil {
			return err
		}
		v, err := fieldValue(pk, raw)
		if err != nil {
			return err
		}
		pks = append(pks, v)
		return nil
	})
	return pks, err
}

func (q *QuerySet) fetch(tx *sql.Tx) ([]*model.Object, error) {
	m := q.model
	fields := m.LocalFields()
	outputs := make([]string, len(fields))
	for i, f := range fields {
		outputs[i] = column("t", f)
	}
	b := q.store.builder()
	query := q.selectStatement(b, outputs)

	var objs []*model.Object
	err := queryAndScan(tx, query, b.qp, func(rows *sql.Rows) error {
		raw := make([]interface{}, len(fields))
		dest := make([]interface{}, len(fields))
		for i := range raw {
			dest[i] = &raw[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return err
		}
		obj := model.NewObject(m)
		for i, f := range fields {
			v, err := fieldValue(f, raw[i])
			if err != nil {
				return err
			}
			if f.PrimaryKey {
				obj.PK = v
			} else {
				obj.Set(f.Name, v)
			}
		}
		objs = append(objs, obj)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if err := q.store.loadManyToMany(tx, m, objs); err != nil {
		return nil, err
	}
	return objs, nil
}
