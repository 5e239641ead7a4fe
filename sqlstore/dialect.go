// Copyright 2015 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package sqlstore

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/diffeo/go-modelrest/model"
)

// dialect captures the differences between the SQL databases the
// store can run against.
type dialect int

const (
	postgresDialect dialect = iota
	sqliteDialect
)

// dialectFor names the dialect for a database/sql driver name.
func dialectFor(driver string) (dialect, error) {
	switch driver {
	case "postgres":
		return postgresDialect, nil
	case "sqlite3":
		return sqliteDialect, nil
	}
	return 0, fmt.Errorf("sqlstore: unsupported database driver %q", driver)
}

// String returns the name sql-migrate knows the dialect by, which is
// also the database/sql driver name.
func (d dialect) String() string {
	if d == sqliteDialect {
		return "sqlite3"
	}
	return "postgres"
}

// placeholder returns the marker for the n'th (1-based) query
// parameter.
func (d dialect) placeholder(n int) string {
	if d == sqliteDialect {
		return "?"
	}
	return "$" + strconv.Itoa(n)
}

// autoKey is the column definition of an automatically assigned
// integer primary key.
func (d dialect) autoKey() string {
	if d == sqliteDialect {
		return "INTEGER PRIMARY KEY AUTOINCREMENT"
	}
	return "BIGSERIAL PRIMARY KEY"
}

// columnType returns the SQL type that holds values of f.  Dates and
// times are stored as text in their canonical layouts, which sorts
// correctly; lists are stored CBOR-encoded.
func (d dialect) columnType(f *model.Field) string {
	switch f.Kind() {
	case model.StringKind, model.UserKind:
		if f.MaxLength > 0 {
			return fmt.Sprintf("VARCHAR(%d)", f.MaxLength)
		}
		return "TEXT"
	case model.IntegerKind, model.ToOneKind:
		if d == sqliteDialect {
			return "INTEGER"
		}
		return "BIGINT"
	case model.FloatKind, model.DecimalKind:
		if d == sqliteDialect {
			return "REAL"
		}
		return "DOUBLE PRECISION"
	case model.BooleanKind:
		return "BOOLEAN"
	case model.BytesKind, model.ListKind:
		if d == sqliteDialect {
			return "BLOB"
		}
		return "BYTEA"
	}
	return "TEXT"
}

// limit renders a LIMIT/OFFSET clause.  A negative limit means no
// limit.
func (d dialect) limit(limit, offset int) string {
	if limit < 0 && offset <= 0 {
		return ""
	}
	clause := " LIMIT "
	if limit < 0 {
		if d == sqliteDialect {
			clause += "-1"
		} else {
			clause += "ALL"
		}
	} else {
		clause += strconv.Itoa(limit)
	}
	if offset > 0 {
		clause += " OFFSET " + strconv.Itoa(offset)
	}
	return clause
}

// match renders a pattern match of expr against the placeholder
// holder.  The pattern has already been built with pattern().
// Case-sensitive matches use GLOB on SQLite, whose LIKE ignores case.
func (d dialect) match(expr, holder string, caseless bool) string {
	if caseless {
		return "LOWER(" + expr + ") LIKE LOWER(" + holder + `) ESCAPE '\'`
	}
	if d == sqliteDialect {
		return expr + " GLOB " + holder
	}
	return expr + " LIKE " + holder + ` ESCAPE '\'`
}

var (
	likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	globEscaper = strings.NewReplacer(`[`, `[[]`, `*`, `[*]`, `?`, `[?]`)
)

// pattern builds the match pattern for a contains, startswith or
// endswith lookup of s, with wildcards before and after it as asked.
func (d dialect) pattern(s string, before, after, caseless bool) string {
	wild := "%"
	if d == sqliteDialect && !caseless {
		s = globEscaper.Replace(s)
		wild = "*"
	} else {
		s = likeEscaper.Replace(s)
	}
	if before {
		s = wild + s
	}
	if after {
		s += wild
	}
	return s
}
