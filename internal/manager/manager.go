// Package manager provides a single entry point over one open database at
// a time, mirroring fsdb's Python manager.Manager: callers address tables
// and records by name/id rather than juggling *fsdb.Table/*fsdb.Record
// handles themselves.
package manager

import (
	"fmt"
	"log"
	"path/filepath"

	"github.com/kunesj/fsdb"
	"github.com/spf13/afero"
)

// Manager holds at most one open database at a time, rooted at RootPath.
type Manager struct {
	fs       afero.Fs
	rootPath string
	database *fsdb.Database
}

// New creates a manager rooted at rootPath. fs is typically afero.NewOsFs()
// in production and afero.NewMemMapFs() in tests.
func New(fs afero.Fs, rootPath string) *Manager {
	return &Manager{fs: fs, rootPath: rootPath}
}

// RootPath returns the manager's storage root.
func (m *Manager) RootPath() string { return m.rootPath }

// IsDatabase reports whether a database directory named name exists under
// the manager's root.
func (m *Manager) IsDatabase(name string) (bool, error) {
	return afero.DirExists(m.fs, filepath.Join(m.rootPath, name))
}

// CreateDatabase creates a new database on disk. It does not open it.
func (m *Manager) CreateDatabase(name string) error {
	_, err := fsdb.CreateDatabase(m.fs, m.rootPath, name)
	return err
}

// OpenDatabase closes any currently open database, then opens name as the
// manager's active database.
func (m *Manager) OpenDatabase(name string) error {
	if m.database != nil {
		if err := m.database.Close(); err != nil {
			return err
		}
	}
	db, err := fsdb.OpenDatabase(m.fs, m.rootPath, name)
	if err != nil {
		return err
	}
	m.database = db
	return nil
}

// CloseDatabase closes the manager's active database, if any.
func (m *Manager) CloseDatabase() error {
	if m.database == nil {
		return nil
	}
	err := m.database.Close()
	m.database = nil
	return err
}

// DeleteDatabase deletes the database named name from disk. If it is the
// manager's currently open database, it is closed first.
func (m *Manager) DeleteDatabase(name string) error {
	exists, err := m.IsDatabase(name)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("fsdb: database %q does not exist", name)
	}

	if m.database != nil && m.database.Name() == name {
		log.Printf("manager: deleting database %q that is currently open, closing it first", name)
		if err := m.CloseDatabase(); err != nil {
			return err
		}
	}

	db, err := fsdb.OpenDatabase(m.fs, m.rootPath, name)
	if err != nil {
		return err
	}
	return db.Delete()
}

func (m *Manager) requireDatabase() (*fsdb.Database, error) {
	if m.database == nil {
		return nil, fsdb.ErrDatabaseClosed
	}
	return m.database, nil
}

func (m *Manager) requireTable(name string) (*fsdb.Table, error) {
	db, err := m.requireDatabase()
	if err != nil {
		return nil, err
	}
	table := db.Table(name)
	if table == nil {
		return nil, fmt.Errorf("fsdb: table %q does not exist: %w", name, fsdb.ErrObjectNotFound)
	}
	return table, nil
}

// IsTable reports whether name is a table of the currently open database.
func (m *Manager) IsTable(name string) (bool, error) {
	db, err := m.requireDatabase()
	if err != nil {
		return false, err
	}
	return db.Table(name) != nil, nil
}

// CreateTable creates a table named name in the currently open database.
func (m *Manager) CreateTable(name string, fields []fsdb.FieldDef) (*fsdb.Table, error) {
	db, err := m.requireDatabase()
	if err != nil {
		return nil, err
	}
	return fsdb.CreateTable(db, name, fields)
}

// DeleteTable deletes the named table from the currently open database.
func (m *Manager) DeleteTable(name string) error {
	table, err := m.requireTable(name)
	if err != nil {
		return err
	}
	return table.Delete()
}

// CreateRecord creates a record with values in the named table.
func (m *Manager) CreateRecord(tableName string, values map[string]any) (*fsdb.Record, error) {
	table, err := m.requireTable(tableName)
	if err != nil {
		return nil, err
	}
	return fsdb.CreateRecord(table, values)
}

// WriteRecords writes values to every record matching domain (nil matching
// everything) in the named table, and returns the written records.
func (m *Manager) WriteRecords(tableName string, values map[string]any, domain fsdb.Domain) ([]*fsdb.Record, error) {
	records, err := m.SearchRecords(tableName, domain, "", 0)
	if err != nil {
		return nil, err
	}
	for _, r := range records {
		if err := r.Write(values); err != nil {
			return nil, err
		}
	}
	return records, nil
}

// BrowseRecords returns handles for the given ids in the named table.
func (m *Manager) BrowseRecords(tableName string, ids []any) ([]*fsdb.Record, error) {
	table, err := m.requireTable(tableName)
	if err != nil {
		return nil, err
	}
	return table.BrowseRecords(ids)
}

// BrowseRecordByIDStr parses idStr per the named table's id field type
// (e.g. "42" for an int id, or the id's datetime wire format) and returns
// its record handle, or nil if no such record exists.
func (m *Manager) BrowseRecordByIDStr(tableName, idStr string) (*fsdb.Record, error) {
	table, err := m.requireTable(tableName)
	if err != nil {
		return nil, err
	}
	id, err := table.IDStrToID(idStr)
	if err != nil {
		return nil, fmt.Errorf("fsdb: parsing id %q: %w", idStr, err)
	}
	return table.BrowseRecord(id)
}

// SearchRecords returns every record in the named table matching domain,
// ordered and limited as given.
func (m *Manager) SearchRecords(tableName string, domain fsdb.Domain, order string, limit int) ([]*fsdb.Record, error) {
	table, err := m.requireTable(tableName)
	if err != nil {
		return nil, err
	}
	return table.SearchRecords(domain, order, limit)
}

// DeleteRecords deletes every record matching domain (nil matching
// everything) in the named table.
func (m *Manager) DeleteRecords(tableName string, domain fsdb.Domain) error {
	records, err := m.SearchRecords(tableName, domain, "", 0)
	if err != nil {
		return err
	}
	for _, r := range records {
		if err := r.Delete(); err != nil {
			return err
		}
	}
	return nil
}
