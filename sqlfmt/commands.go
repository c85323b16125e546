package sqlfmt

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/samber/lo"
)

const (
	infoTable = "saveables_info"
	metaTable = "meta_data"

	colID          = "id"
	colObjectID    = "object_id"
	colData        = "data"
	colMetaData    = "meta_data"
	colReference   = "reference"
	colReferenceID = "reference_id"

	colType = "type"
	colRole = "role"
	colName = "name"
	colElem = "element_type"
)

const (
	infoEncoding      = "encoding"
	infoRootObjectID  = "root_object_id"
	infoFormatVersion = "format_version"

	formatVersion = "1"
)

var (
	objectColumns = []string{colObjectID, colData, colMetaData, colReference, colReferenceID}
	metaColumns   = []string{colType, colRole, colName, colElem}
)

// dataRow is one row of an object table.
type dataRow struct {
	ID          int64          `db:"id"`
	ObjectID    string         `db:"object_id"`
	Data        sql.NullString `db:"data"`
	MetaData    int64          `db:"meta_data"`
	Reference   sql.NullString `db:"reference"`
	ReferenceID sql.NullString `db:"reference_id"`
}

type metaRow struct {
	ID   int64  `db:"id"`
	Type string `db:"type"`
	Role string `db:"role"`
	Name string `db:"name"`
	Elem string `db:"element_type"`
}

// reservedTable reports whether an object table cannot be called name.
// SQLite compares table names case-insensitively.
func reservedTable(name string) bool {
	key := tableKey(name)
	return key == infoTable || key == metaTable || strings.HasPrefix(key, "sqlite_")
}

// tableKey folds a table name the way SQLite does when resolving it: only
// ASCII letters are case-insensitive.
func tableKey(name string) string {
	return strings.Map(func(r rune) rune {
		if r >= 'A' && r <= 'Z' {
			return r + ('a' - 'A')
		}
		return r
	}, name)
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func columnList(cols []string) string {
	return strings.Join(lo.Map(cols, func(c string, _ int) string { return quoteIdent(c) }), ", ")
}

func namedList(cols []string) string {
	return strings.Join(lo.Map(cols, func(c string, _ int) string { return ":" + c }), ", ")
}

func conditions(cols []string) string {
	return strings.Join(lo.Map(cols, func(c string, _ int) string { return quoteIdent(c) + " = ?" }), " AND ")
}

const tableExistsSQL = `SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ? COLLATE NOCASE`

func createInfoTableSQL() string {
	return fmt.Sprintf(`CREATE TABLE %s (key TEXT PRIMARY KEY, value TEXT NOT NULL)`, quoteIdent(infoTable))
}

func insertInfoSQL() string {
	return fmt.Sprintf(`INSERT INTO %s (key, value) VALUES (?, ?)`, quoteIdent(infoTable))
}

func selectInfoSQL() string {
	return fmt.Sprintf(`SELECT value FROM %s WHERE key = ?`, quoteIdent(infoTable))
}

func createMetaTableSQL() string {
	defs := lo.Map(metaColumns, func(c string, _ int) string { return quoteIdent(c) + " TEXT NOT NULL" })
	return fmt.Sprintf(`CREATE TABLE %s (%s INTEGER PRIMARY KEY AUTOINCREMENT, %s, UNIQUE (%s))`,
		quoteIdent(metaTable), quoteIdent(colID), strings.Join(defs, ", "), columnList(metaColumns))
}

func selectMetaIDSQL() string {
	return fmt.Sprintf(`SELECT %s FROM %s WHERE %s`, quoteIdent(colID), quoteIdent(metaTable), conditions(metaColumns))
}

func insertMetaSQL() string {
	return fmt.Sprintf(`INSERT INTO %s (%s) VALUES (%s)`, quoteIdent(metaTable), columnList(metaColumns), namedList(metaColumns))
}

func selectMetaSQL() string {
	return fmt.Sprintf(`SELECT %s FROM %s WHERE %s = ?`,
		columnList(append([]string{colID}, metaColumns...)), quoteIdent(metaTable), quoteIdent(colID))
}

// createObjectTableSQL creates the table shared by every object stored
// under one node name; rows of different objects differ in object_id.
func createObjectTableSQL(table string) string {
	return fmt.Sprintf(`CREATE TABLE %s (
	%s INTEGER PRIMARY KEY AUTOINCREMENT,
	%s TEXT NOT NULL,
	%s TEXT,
	%s INTEGER NOT NULL,
	%s TEXT,
	%s TEXT,
	FOREIGN KEY (%s) REFERENCES %s (%s))`,
		quoteIdent(table),
		quoteIdent(colID), quoteIdent(colObjectID), quoteIdent(colData), quoteIdent(colMetaData),
		quoteIdent(colReference), quoteIdent(colReferenceID),
		quoteIdent(colMetaData), quoteIdent(metaTable), quoteIdent(colID))
}

func insertRowSQL(table string) string {
	return fmt.Sprintf(`INSERT INTO %s (%s) VALUES (%s)`, quoteIdent(table), columnList(objectColumns), namedList(objectColumns))
}

func selectAttributesSQL(table string) string {
	return fmt.Sprintf(`SELECT * FROM %s WHERE %s = ? AND %s IS NULL ORDER BY %s`,
		quoteIdent(table), quoteIdent(colObjectID), quoteIdent(colReference), quoteIdent(colID))
}

func selectElementsSQL(table string) string {
	return fmt.Sprintf(`SELECT %s FROM %s WHERE %s = ? AND %s = ? AND %s IS NULL ORDER BY %s`,
		quoteIdent(colData), quoteIdent(table), quoteIdent(colObjectID), quoteIdent(colMetaData),
		quoteIdent(colReference), quoteIdent(colID))
}

func selectChildrenSQL(table string) string {
	return fmt.Sprintf(`SELECT * FROM %s WHERE %s = ? AND %s IS NOT NULL ORDER BY %s`,
		quoteIdent(table), quoteIdent(colObjectID), quoteIdent(colReference), quoteIdent(colID))
}

func firstObjectIDSQL(table string) string {
	return fmt.Sprintf(`SELECT %s FROM %s ORDER BY %s LIMIT 1`, quoteIdent(colObjectID), quoteIdent(table), quoteIdent(colID))
}
