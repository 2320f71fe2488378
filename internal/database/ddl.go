package database

import (
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/ThiagoRGoveia/market-data-loader/internal/models"
)

func columnSQLType(dialect Dialect, columnType models.ColumnType) string {
	switch columnType {
	case models.ColumnTypeInt:
		if dialect == DialectSQLite {
			return "INTEGER"
		}
		return "BIGINT"
	case models.ColumnTypeFloat:
		if dialect == DialectSQLite {
			return "REAL"
		}
		return "DOUBLE PRECISION"
	case models.ColumnTypeDate:
		if dialect == DialectSQLite {
			return "TEXT"
		}
		return "DATE"
	default:
		return "TEXT"
	}
}

// CreateTableStatement builds a CREATE TABLE IF NOT EXISTS for the given output
// columns. All columns are nullable since unparseable dates are stored as NULL.
func CreateTableStatement(dialect Dialect, table string, columns []models.ColumnTarget) (string, error) {
	if strings.TrimSpace(table) == "" {
		return "", fmt.Errorf("%w: table name is required", models.ErrConfiguration)
	}
	if len(columns) == 0 {
		return "", fmt.Errorf("%w: table %s has no columns", models.ErrConfiguration, table)
	}

	defs := make([]string, len(columns))
	for i, column := range columns {
		defs[i] = fmt.Sprintf("\t%s %s", pgx.Identifier{column.Label}.Sanitize(), columnSQLType(dialect, column.Type))
	}

	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n%s\n);", QuoteIdentifier(table), strings.Join(defs, ",\n")), nil
}
