package fsdb

import (
	"encoding/json"
	"fmt"
	"log"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/afero"
)

const tableDataFileName = "data.json"

// Table is a record store of uniform schema: a directory of record
// subdirectories, plus its own data.json describing the field schema.
type Table struct {
	name      string
	database  *Database
	fields    map[string]*Field
	recordIDs []any
	path      string
	dataPath  string
	deleted   bool
}

func (t *Table) checkAccess() error {
	if t.deleted {
		return deletedf("table %q", t.name)
	}
	return t.database.checkAccess()
}

func (t *Table) cache() *Cache { return t.database.cache }

func (t *Table) idField() *Field { return t.fields["id"] }

// Name returns the table's name.
func (t *Table) Name() string { return t.name }

// Fields returns the table's field descriptors, keyed by name.
func (t *Table) Fields() map[string]FieldDef {
	out := make(map[string]FieldDef, len(t.fields))
	for name, f := range t.fields {
		out[name] = f.def
	}
	return out
}

// CreateTable creates a new table under database. fieldDefs are the
// caller's declared fields; "id" may be declared to pick its type (int or
// datetime, default int) but is otherwise filled in automatically, along
// with the system "create_datetime"/"modify_datetime" fields.
func CreateTable(database *Database, name string, fieldDefs []FieldDef) (*Table, error) {
	if err := database.checkAccess(); err != nil {
		return nil, err
	}
	log.Printf("fsdb: create table %q in database %q", name, database.name)

	sanitized := Sanitize(name)
	if sanitized != name {
		return nil, fmt.Errorf("fsdb: %q is not a valid table name (sanitized form is %q)", name, sanitized)
	}

	path := filepath.Join(database.dbPath, name)
	exists, err := afero.DirExists(database.fs, path)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, fmt.Errorf("fsdb: table %q already exists in database %q", name, database.name)
	}

	idType := FieldInt
	var declared []FieldDef
	for _, def := range fieldDefs {
		def.Name = strings.ToLower(strings.TrimSpace(def.Name))
		if def.Name == "id" {
			if def.Type != FieldInt && def.Type != FieldDatetime {
				return nil, fmt.Errorf("fsdb: id field type must be \"int\" or \"datetime\", got %q", def.Type)
			}
			idType = def.Type
			continue
		}
		if ReservedFieldNames[def.Name] {
			return nil, fmt.Errorf("fsdb: field name %q is reserved", def.Name)
		}
		declared = append(declared, def)
	}

	allDefs := append([]FieldDef{
		{Name: "id", Type: idType, Required: true, Unique: true},
		{Name: "create_datetime", Type: FieldDatetime, Required: true},
		{Name: "modify_datetime", Type: FieldDatetime, Required: true},
	}, declared...)

	table := &Table{
		name:     name,
		database: database,
		fields:   map[string]*Field{},
		path:     path,
		dataPath: filepath.Join(path, tableDataFileName),
	}
	for _, def := range allDefs {
		f, err := newField(table, def)
		if err != nil {
			return nil, err
		}
		table.fields[def.Name] = f
	}

	if err := database.fs.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("fsdb: creating table directory %q: %w", path, err)
	}
	if err := table.SaveData(); err != nil {
		return nil, err
	}

	database.tables[name] = table
	return table, nil
}

// loadTable loads an existing table directory's schema and record id list.
func loadTable(database *Database, name string) (*Table, error) {
	path := filepath.Join(database.dbPath, name)
	table := &Table{
		name:     name,
		database: database,
		fields:   map[string]*Field{},
		path:     path,
		dataPath: filepath.Join(path, tableDataFileName),
	}
	if err := table.LoadData(); err != nil {
		return nil, err
	}
	ids, err := table.LoadRecordIDs()
	if err != nil {
		return nil, err
	}
	table.recordIDs = ids
	return table, nil
}

// SaveData persists the table's field schema to data.json.
func (t *Table) SaveData() error {
	if err := t.validateSchema(); err != nil {
		return err
	}
	names := make([]string, 0, len(t.fields))
	for name := range t.fields {
		names = append(names, name)
	}
	sort.Strings(names)

	fields := make([]map[string]any, 0, len(names))
	for _, name := range names {
		fields = append(fields, t.fields[name].def.ToDict())
	}

	return writeJSONAtomic(t.database.fs, t.dataPath, map[string]any{
		"name":   t.name,
		"fields": fields,
	})
}

// LoadData reads the table's field schema from data.json.
func (t *Table) LoadData() error {
	var raw struct {
		Name   string           `json:"name"`
		Fields []map[string]any `json:"fields"`
	}
	if err := readJSON(t.database.fs, t.dataPath, &raw); err != nil {
		return err
	}

	fields := map[string]*Field{}
	for _, m := range raw.Fields {
		def, err := FieldDefFromDict(m)
		if err != nil {
			return err
		}
		f, err := newField(t, def)
		if err != nil {
			return err
		}
		fields[def.Name] = f
	}
	t.fields = fields
	return t.validateSchema()
}

func (t *Table) validateSchema() error {
	if _, ok := t.fields["id"]; !ok {
		return fmt.Errorf("fsdb: table %q schema missing required \"id\" field", t.name)
	}
	if _, ok := t.fields["create_datetime"]; !ok {
		return fmt.Errorf("fsdb: table %q schema missing required \"create_datetime\" field", t.name)
	}
	if _, ok := t.fields["modify_datetime"]; !ok {
		return fmt.Errorf("fsdb: table %q schema missing required \"modify_datetime\" field", t.name)
	}
	return nil
}

// GetNewID returns a fresh, unused id value: the highest existing int id
// plus one (or 1 if the table is empty), or the current UTC time for a
// datetime-id table.
func (t *Table) GetNewID() (any, error) {
	switch t.idField().Type() {
	case FieldInt:
		var max int64
		for _, id := range t.recordIDs {
			if n, ok := id.(int64); ok && n > max {
				max = n
			}
		}
		return max + 1, nil
	case FieldDatetime:
		return nowUTC(), nil
	default:
		return nil, fmt.Errorf("fsdb: table %q has unsupported id field type %q", t.name, t.idField().Type())
	}
}

// LoadRecordIDs scans the table directory for record subdirectories,
// sweeping away any that lack a valid data.json (the residue of a crash
// between mkdir and the first atomic write), and returns the remaining ids
// in ascending order.
func (t *Table) LoadRecordIDs() ([]any, error) {
	entries, err := afero.ReadDir(t.database.fs, t.path)
	if err != nil {
		return nil, fmt.Errorf("fsdb: reading table directory %q: %w", t.path, err)
	}

	var ids []any
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		recordPath := filepath.Join(t.path, entry.Name())
		dataPath := filepath.Join(recordPath, dataFileName)
		exists, err := afero.Exists(t.database.fs, dataPath)
		if err != nil {
			return nil, err
		}
		valid := false
		if exists {
			data, err := afero.ReadFile(t.database.fs, dataPath)
			if err != nil {
				return nil, err
			}
			valid = json.Valid(data)
		}
		if !valid {
			log.Printf("fsdb: warning: removing orphan record directory %q in table %q (no valid data.json)", entry.Name(), t.name)
			if err := t.database.fs.RemoveAll(recordPath); err != nil {
				return nil, fmt.Errorf("fsdb: removing orphan directory %q: %w", recordPath, err)
			}
			continue
		}

		id, err := t.idField().Str2Val(entry.Name())
		if err != nil {
			log.Printf("fsdb: warning: removing record directory %q in table %q with unparseable id: %v", entry.Name(), t.name, err)
			if err := t.database.fs.RemoveAll(recordPath); err != nil {
				return nil, fmt.Errorf("fsdb: removing invalid directory %q: %w", recordPath, err)
			}
			continue
		}
		ids = append(ids, id)
	}

	sort.Slice(ids, func(i, j int) bool {
		less, _ := valueLess(ids[i], ids[j])
		return less
	})
	return ids, nil
}

// IDStrToID parses a record directory name back into its id value.
func (t *Table) IDStrToID(s string) (any, error) {
	return t.idField().Str2Val(s)
}

// IDToStr renders an id value as its record directory name.
func (t *Table) IDToStr(id any) (string, error) {
	return t.idField().Val2Str(id)
}

// BrowseRecord returns a handle for id if it currently belongs to the
// table, or nil if it does not (no error: browsing a nonexistent id is not
// exceptional, unlike reading/writing one).
func (t *Table) BrowseRecord(id any) (*Record, error) {
	if err := t.checkAccess(); err != nil {
		return nil, err
	}
	for _, existing := range t.recordIDs {
		if existing == id {
			return newRecord(t, id)
		}
	}
	return nil, nil
}

// BrowseRecords returns handles for every id in ids that currently belongs
// to the table; ids not found are silently skipped.
func (t *Table) BrowseRecords(ids []any) ([]*Record, error) {
	if err := t.checkAccess(); err != nil {
		return nil, err
	}
	present := make(map[any]bool, len(t.recordIDs))
	for _, id := range t.recordIDs {
		present[id] = true
	}

	var records []*Record
	for _, id := range ids {
		if !present[id] {
			continue
		}
		r, err := newRecord(t, id)
		if err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, nil
}

// SearchRecords returns every record matching domain (an empty domain
// matches everything), ordered per order (if non-empty), and capped at
// limit records (0 meaning unlimited).
func (t *Table) SearchRecords(domain Domain, order string, limit int) ([]*Record, error) {
	if err := t.checkAccess(); err != nil {
		return nil, err
	}

	validFields := make(map[string]bool, len(t.fields))
	for name := range t.fields {
		validFields[name] = true
	}
	if err := ValidateDomain(domain, validFields); err != nil {
		return nil, err
	}
	for _, raw := range domain {
		elem, _ := normalizeElement(domain, raw)
		if filter, ok := elem.(Filter); ok {
			if typ := t.fields[filter.Field].Type(); typ == FieldFile || typ == FieldFileList {
				return nil, fmt.Errorf("fsdb: field %q of type %q cannot be used in a search domain", filter.Field, typ)
			}
		}
	}

	var matched []*Record
	for _, id := range t.recordIDs {
		record, err := newRecord(t, id)
		if err != nil {
			return nil, err
		}

		ok, err := EvaluateDomain(domain, func(filter Filter) (bool, error) {
			values, err := record.Read([]string{filter.Field})
			if err != nil {
				return false, err
			}
			return ApplyOp(filter.Op, values[filter.Field], filter.Value)
		})
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}

		matched = append(matched, record)
		if order == "" && limit > 0 && len(matched) >= limit {
			break
		}
	}

	if order != "" {
		clauses, err := ParseOrder(order)
		if err != nil {
			return nil, err
		}
		for _, c := range clauses {
			if !validFields[c.Field] {
				return nil, orderf("unknown field %q", c.Field)
			}
		}
		if err := sortRecordsByClauses(matched, clauses); err != nil {
			return nil, err
		}
		if limit > 0 && len(matched) > limit {
			matched = matched[:limit]
		}
	}

	return matched, nil
}

// sortRecordsByClauses applies clauses back-to-front with a stable sort
// each time, so the first clause ends up as the primary sort key
// (spec.md's "reversed order-clause sort" trick).
func sortRecordsByClauses(records []*Record, clauses []OrderClause) error {
	for i := len(clauses) - 1; i >= 0; i-- {
		clause := clauses[i]
		var sortErr error
		sort.SliceStable(records, func(a, b int) bool {
			if sortErr != nil {
				return false
			}
			va, err := records[a].Read([]string{clause.Field})
			if err != nil {
				sortErr = err
				return false
			}
			vb, err := records[b].Read([]string{clause.Field})
			if err != nil {
				sortErr = err
				return false
			}
			less, err := valueLess(va[clause.Field], vb[clause.Field])
			if err != nil {
				sortErr = err
				return false
			}
			if clause.Desc {
				return !less && va[clause.Field] != vb[clause.Field]
			}
			return less
		})
		if sortErr != nil {
			return sortErr
		}
	}
	return nil
}

// Delete removes the table directory and all of its records.
func (t *Table) Delete() error {
	if err := t.checkAccess(); err != nil {
		return err
	}
	log.Printf("fsdb: delete table %q in database %q", t.name, t.database.name)

	t.cache().Clear()

	exists, err := afero.DirExists(t.database.fs, t.path)
	if err != nil {
		return err
	}
	if exists {
		if err := t.database.fs.RemoveAll(t.path); err != nil {
			return fmt.Errorf("fsdb: deleting table directory %q: %w", t.path, err)
		}
	}

	delete(t.database.tables, t.name)
	t.deleted = true
	return nil
}
