package fsdb

import (
	"fmt"
	"log"
	"path/filepath"

	"github.com/spf13/afero"
)

const databaseDataFileName = "data.json"

// Database is the top-level container: a directory holding a data.json
// (cache sizing) and one subdirectory per table.
type Database struct {
	name     string
	rootPath string
	dbPath   string
	dataPath string
	tables   map[string]*Table
	cache    *Cache
	fs       afero.Fs
	closed   bool
	deleted  bool
}

func (db *Database) checkAccess() error {
	if db.deleted {
		return deletedf("database %q", db.name)
	}
	if db.closed {
		return closedf("database %q", db.name)
	}
	return nil
}

// Name returns the database's name.
func (db *Database) Name() string { return db.name }

// Cache returns the database's shared record cache.
func (db *Database) Cache() *Cache { return db.cache }

// Tables returns the names of the database's currently loaded tables.
func (db *Database) Tables() []string {
	names := make([]string, 0, len(db.tables))
	for name := range db.tables {
		names = append(names, name)
	}
	return names
}

// Table returns the named table, or nil if it does not exist.
func (db *Database) Table(name string) *Table {
	return db.tables[name]
}

// CreateDatabase creates a new database directory named name under
// rootPath on fs.
func CreateDatabase(fs afero.Fs, rootPath, name string) (*Database, error) {
	sanitized := Sanitize(name)
	if sanitized != name {
		return nil, fmt.Errorf("fsdb: %q is not a valid database name (sanitized form is %q)", name, sanitized)
	}

	dbPath := filepath.Join(rootPath, name)
	exists, err := afero.DirExists(fs, dbPath)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, fmt.Errorf("fsdb: database %q already exists under %q", name, rootPath)
	}

	log.Printf("fsdb: create database %q under %q", name, rootPath)

	db := &Database{
		name:     name,
		rootPath: rootPath,
		dbPath:   dbPath,
		dataPath: filepath.Join(dbPath, databaseDataFileName),
		tables:   map[string]*Table{},
		cache:    NewCache(0),
		fs:       fs,
	}

	if err := fs.MkdirAll(dbPath, 0o755); err != nil {
		return nil, fmt.Errorf("fsdb: creating database directory %q: %w", dbPath, err)
	}
	if err := db.SaveData(); err != nil {
		return nil, err
	}

	return db, nil
}

// OpenDatabase opens an existing database directory named name under
// rootPath on fs, loading its cache configuration and tables.
func OpenDatabase(fs afero.Fs, rootPath, name string) (*Database, error) {
	dbPath := filepath.Join(rootPath, name)
	exists, err := afero.DirExists(fs, dbPath)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, notFoundf("database %q under %q", name, rootPath)
	}

	log.Printf("fsdb: open database %q under %q", name, rootPath)

	db := &Database{
		name:     name,
		rootPath: rootPath,
		dbPath:   dbPath,
		dataPath: filepath.Join(dbPath, databaseDataFileName),
		tables:   map[string]*Table{},
		cache:    NewCache(0),
		fs:       fs,
	}

	if err := db.LoadData(); err != nil {
		return nil, err
	}
	if err := db.loadTables(); err != nil {
		return nil, err
	}
	return db, nil
}

// SaveData persists the database's cache sizing configuration to data.json.
func (db *Database) SaveData() error {
	size, limit := db.cache.GetCacheSize()
	return writeJSONAtomic(db.fs, db.dataPath, map[string]any{
		"name":             db.name,
		"cache_size":       size,
		"cache_size_limit": limit,
	})
}

// LoadData reads the database's cache sizing configuration from data.json.
func (db *Database) LoadData() error {
	var raw struct {
		CacheSize      int `json:"cache_size"`
		CacheSizeLimit int `json:"cache_size_limit"`
	}
	if err := readJSON(db.fs, db.dataPath, &raw); err != nil {
		return err
	}
	db.cache.SetCacheSize(raw.CacheSize, raw.CacheSizeLimit)
	return nil
}

// loadTables scans the database directory for table subdirectories and
// loads each one's schema and record id list.
func (db *Database) loadTables() error {
	entries, err := afero.ReadDir(db.fs, db.dbPath)
	if err != nil {
		return fmt.Errorf("fsdb: reading database directory %q: %w", db.dbPath, err)
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		table, err := loadTable(db, entry.Name())
		if err != nil {
			return fmt.Errorf("fsdb: loading table %q: %w", entry.Name(), err)
		}
		db.tables[entry.Name()] = table
	}
	return nil
}

// Close marks the database closed: every subsequent operation that runs the
// access guard (Delete, CreateTable, CreateRecord, the table's Browse/Search/
// Delete, the record's Read/Write/Delete, the field's Read/Write) fails with
// ErrDatabaseClosed. Accessors such as Name or Table, and SaveData/LoadData,
// do not check the flag. Closing an already-closed database is a no-op.
func (db *Database) Close() error {
	if db.deleted {
		return deletedf("database %q", db.name)
	}
	log.Printf("fsdb: close database %q", db.name)
	db.closed = true
	return nil
}

// Delete removes the database directory and everything under it.
func (db *Database) Delete() error {
	if err := db.checkAccess(); err != nil {
		return err
	}
	log.Printf("fsdb: delete database %q", db.name)

	db.cache.Clear()

	exists, err := afero.DirExists(db.fs, db.dbPath)
	if err != nil {
		return err
	}
	if exists {
		if err := db.fs.RemoveAll(db.dbPath); err != nil {
			return fmt.Errorf("fsdb: deleting database directory %q: %w", db.dbPath, err)
		}
	}

	db.deleted = true
	return nil
}
