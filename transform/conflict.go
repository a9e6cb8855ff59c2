package transform

import (
	"fmt"

	"gorm.io/gorm/clause"
)

// buildOnConflict constructs the ON CONFLICT(id) DO UPDATE clause for an
// OntologyTransform: monotone columns only ever move forward, everything
// else is overwritten unconditionally.
// greatestFn is the dialect's two-argument maximum function name ("GREATEST"
// on Postgres/MySQL, "MAX" on SQLite, where it is a scalar function rather
// than an aggregate).
func buildOnConflict(t *OntologyTransform, greatestFn string) clause.OnConflict {
	idColumn := t.IDColumn
	if idColumn == "" {
		idColumn = "id"
	}

	m := map[string]any{}
	for _, col := range t.UpdateColumns {
		m[col] = gormExcluded(col)
	}
	for _, col := range t.MonotoneColumns {
		m[col] = gormGreatest(greatestFn, col)
	}

	return clause.OnConflict{
		Columns:   []clause.Column{{Name: idColumn}},
		DoUpdates: clause.Assignments(m),
	}
}

func gormExcluded(column string) clause.Expr {
	return clause.Expr{SQL: fmt.Sprintf("excluded.%s", column)}
}

// gormGreatest references the bare (unqualified) column name for the
// existing row's value, which Postgres/MySQL/SQLite all resolve to the
// pre-update value inside an ON CONFLICT/ON DUPLICATE KEY SET clause.
func gormGreatest(fn, column string) clause.Expr {
	return clause.Expr{SQL: fmt.Sprintf("%s(excluded.%s, %s)", fn, column, column)}
}

// greatestFnForDialect maps a GORM dialector name to its scalar
// two-argument maximum function.
func greatestFnForDialect(dialectName string) string {
	switch dialectName {
	case "sqlite":
		return "MAX"
	default:
		return "GREATEST"
	}
}
