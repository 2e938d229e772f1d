// Package repository implements the comment and subscriber repositories on
// database/sql for both SQLite and PostgreSQL. Queries are written with "?"
// placeholders and rebound per dialect.
package repository

import (
	"strconv"
	"strings"

	"github.com/pipeaalzamora/el-blog-del-ceo/db/sql/postgres"
	"github.com/pipeaalzamora/el-blog-del-ceo/db/sql/sqlite"
)

type Dialect struct {
	name     string
	numbered bool
	isUnique func(error) bool
}

var (
	SQLite   = Dialect{name: "sqlite", isUnique: sqlite.IsUniqueViolation}
	Postgres = Dialect{name: "postgres", numbered: true, isUnique: postgres.IsUniqueViolation}
)

// DialectFor maps a configured driver name to its Dialect.
func DialectFor(driver string) (Dialect, bool) {
	switch strings.ToLower(driver) {
	case "sqlite", "sqlite3":
		return SQLite, true
	case "postgres", "postgresql", "pq":
		return Postgres, true
	}
	return Dialect{}, false
}

func (d Dialect) String() string { return d.name }

// bind rewrites "?" placeholders to "$1", "$2"... for PostgreSQL.
func (d Dialect) bind(query string) string {
	if !d.numbered {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
