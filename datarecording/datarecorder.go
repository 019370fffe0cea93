// Package datarecording persists simulation data into SQLite databases.
// Tables are derived from flat structs; inserts are batched and flushed at
// exit.
package datarecording

import (
	"database/sql"
	"fmt"
	"os"
	"reflect"
	"strings"

	"github.com/fatih/structs"
	"github.com/pkg/errors"
	"github.com/rs/xid"
	"github.com/tebeka/atexit"

	// SQLite driver.
	_ "github.com/mattn/go-sqlite3"
)

// A DataRecorder records and stores rows of simulation data.
type DataRecorder interface {
	// CreateTable creates a table shaped after the sample entry's fields.
	CreateTable(tableName string, sampleEntry any)

	// InsertData buffers one entry of the table's type for insertion.
	InsertData(tableName string, entry any)

	// ListTables returns the names of all created tables.
	ListTables() []string

	// Flush writes all buffered entries to the database.
	Flush()
}

// An SQLiteWriter is a DataRecorder backed by one SQLite database file.
type SQLiteWriter struct {
	*sql.DB

	dbName      string
	batchSize   int
	tables      map[string]*table
	numBuffered int
}

type table struct {
	structType reflect.Type
	entries    []any
}

// NewSQLiteWriter creates a writer for the database at path, without the
// .sqlite3 suffix. An empty path picks a unique default name. Call Init
// before use.
func NewSQLiteWriter(path string) *SQLiteWriter {
	w := &SQLiteWriter{
		dbName:    path,
		batchSize: 100000,
		tables:    make(map[string]*table),
	}

	atexit.Register(func() { w.Flush() })

	return w
}

// Init opens the database file. The file must not already exist.
func (w *SQLiteWriter) Init() {
	if w.dbName == "" {
		w.dbName = "procflow_trace_" + xid.New().String()
	}

	filename := w.dbName + ".sqlite3"

	if _, err := os.Stat(filename); err == nil {
		panic(errors.Errorf("file %s already exists", filename))
	}

	fmt.Fprintf(os.Stderr, "Trace database created: %s\n", filename)

	db, err := sql.Open("sqlite3", filename)
	if err != nil {
		panic(err)
	}

	w.DB = db
}

// Path returns the database path without the .sqlite3 suffix.
func (w *SQLiteWriter) Path() string {
	return w.dbName
}

func allowedFieldKind(kind reflect.Kind) bool {
	switch kind {
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16,
		reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16,
		reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64,
		reflect.String:
		return true
	default:
		return false
	}
}

func checkEntryFields(entry any) error {
	t := reflect.TypeOf(entry)

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !allowedFieldKind(field.Type.Kind()) {
			return errors.Errorf(
				"field %s has kind %s, which cannot be recorded",
				field.Name, field.Type.Kind())
		}
	}

	return nil
}

// CreateTable creates a table shaped after the sample entry.
func (w *SQLiteWriter) CreateTable(tableName string, sampleEntry any) {
	if err := checkEntryFields(sampleEntry); err != nil {
		panic(err)
	}

	if _, exists := w.tables[tableName]; exists {
		panic(fmt.Sprintf("table %s already exists", tableName))
	}

	fields := strings.Join(structs.Names(sampleEntry), ",\n\t")
	w.mustExecute("CREATE TABLE " + tableName + " (\n\t" + fields + "\n);")

	w.tables[tableName] = &table{
		structType: reflect.TypeOf(sampleEntry),
	}
}

// InsertData buffers one entry. Entries are written in batches; call Flush
// to force them out.
func (w *SQLiteWriter) InsertData(tableName string, entry any) {
	t, exists := w.tables[tableName]
	if !exists {
		panic(fmt.Sprintf("table %s does not exist", tableName))
	}

	if reflect.TypeOf(entry) != t.structType {
		panic(fmt.Sprintf("entry type %T does not match table %s",
			entry, tableName))
	}

	t.entries = append(t.entries, entry)

	w.numBuffered++
	if w.numBuffered >= w.batchSize {
		w.Flush()
	}
}

// ListTables returns the names of all created tables.
func (w *SQLiteWriter) ListTables() []string {
	names := make([]string, 0, len(w.tables))
	for name := range w.tables {
		names = append(names, name)
	}

	return names
}

// Flush writes all buffered entries in one transaction.
func (w *SQLiteWriter) Flush() {
	if w.numBuffered == 0 {
		return
	}

	w.mustExecute("BEGIN TRANSACTION")
	defer w.mustExecute("COMMIT TRANSACTION")

	for tableName, t := range w.tables {
		if len(t.entries) == 0 {
			continue
		}

		stmt := w.prepareInsert(tableName, t.entries[0])

		for _, entry := range t.entries {
			v := reflect.ValueOf(entry)

			args := make([]any, 0, v.NumField())
			for i := 0; i < v.NumField(); i++ {
				args = append(args, v.Field(i).Interface())
			}

			if _, err := stmt.Exec(args...); err != nil {
				panic(err)
			}
		}

		t.entries = nil
		stmt.Close()
	}

	w.numBuffered = 0
}

func (w *SQLiteWriter) prepareInsert(tableName string, sample any) *sql.Stmt {
	placeholders := structs.Names(sample)
	for i := range placeholders {
		placeholders[i] = "?"
	}

	stmt, err := w.Prepare("INSERT INTO " + tableName + " VALUES (" +
		strings.Join(placeholders, ", ") + ")")
	if err != nil {
		panic(err)
	}

	return stmt
}

func (w *SQLiteWriter) mustExecute(query string) sql.Result {
	res, err := w.Exec(query)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to execute: %s\n", query)
		panic(err)
	}

	return res
}
