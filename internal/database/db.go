package database

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"
)

// Store runs statements against a destination database. InsertBatch must apply
// all rows or none of them.
type Store interface {
	InsertBatch(ctx context.Context, table string, columns []string, rows [][]any) error
	Exec(ctx context.Context, query string) error
	Ping(ctx context.Context) error
	Dialect() Dialect
	Close()
}

type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite"
)

func (d Dialect) placeholder(n int) string {
	if d == DialectSQLite {
		return "?"
	}
	return fmt.Sprintf("$%d", n)
}

// maxBindParams is the largest number of parameters a single statement may carry.
func (d Dialect) maxBindParams() int {
	if d == DialectSQLite {
		return 32766
	}
	return 65535
}

// QuoteIdentifier quotes a possibly schema-qualified name such as "market.quotes".
func QuoteIdentifier(name string) string {
	return pgx.Identifier(strings.Split(name, ".")).Sanitize()
}

// BuildInsertStatement renders one multi-row parameterized INSERT for rowCount
// rows of the given columns.
func BuildInsertStatement(dialect Dialect, table string, columns []string, rowCount int) (string, error) {
	if len(columns) == 0 {
		return "", fmt.Errorf("insert into %s: no columns", table)
	}
	if rowCount <= 0 {
		return "", fmt.Errorf("insert into %s: no rows", table)
	}
	if params := len(columns) * rowCount; params > dialect.maxBindParams() {
		return "", fmt.Errorf("insert into %s: %d parameters exceed the %s limit of %d",
			table, params, dialect, dialect.maxBindParams())
	}

	quoted := make([]string, len(columns))
	for i, column := range columns {
		quoted[i] = pgx.Identifier{column}.Sanitize()
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "INSERT INTO %s (%s) VALUES ", QuoteIdentifier(table), strings.Join(quoted, ", "))

	n := 1
	for r := 0; r < rowCount; r++ {
		if r > 0 {
			sb.WriteString(", ")
		}
		sb.WriteByte('(')
		for c := range columns {
			if c > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(dialect.placeholder(n))
			n++
		}
		sb.WriteByte(')')
	}

	return sb.String(), nil
}

// sortedColumns returns the keys of a record in a stable order.
func sortedColumns(record map[string]any) []string {
	columns := make([]string, 0, len(record))
	for column := range record {
		columns = append(columns, column)
	}
	sort.Strings(columns)
	return columns
}
