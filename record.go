package fsdb

import (
	"fmt"
	"log"
	"path/filepath"

	"github.com/spf13/afero"
)

// Record is a single row: a directory holding data.json plus any file
// attachments. Its Table back-reference is read-only and used only for
// lookups (schema, filesystem root) and access-guard propagation — Record
// never owns its Table.
type Record struct {
	id       any
	idStr    string
	table    *Table
	fields   map[string]*Field
	path     string
	dataPath string
	cacheKey string
	deleted  bool
}

func newRecord(table *Table, id any) (*Record, error) {
	idStr, err := table.idField().Val2Str(id)
	if err != nil {
		return nil, err
	}
	path := filepath.Join(table.path, idStr)
	return &Record{
		id:       id,
		idStr:    idStr,
		table:    table,
		fields:   table.fields,
		path:     path,
		dataPath: filepath.Join(path, dataFileName),
		cacheKey: table.name + "-" + idStr,
	}, nil
}

func (r *Record) fs() afero.Fs { return r.table.database.fs }

func (r *Record) checkAccess() error {
	if r.deleted {
		return deletedf("record %q in table %q", r.idStr, r.table.name)
	}
	return r.table.checkAccess()
}

// ID returns the record's identity value (int64 or time.Time, depending on
// the table's id field type).
func (r *Record) ID() any { return r.id }

// IDStr returns the record's id in its directory-name string form.
func (r *Record) IDStr() string { return r.idStr }

// CreateRecord creates a new record in table. If values contains "id", that
// id is used (and must be unique); otherwise table.GetNewID supplies one.
func CreateRecord(table *Table, values map[string]any) (*Record, error) {
	if err := table.checkAccess(); err != nil {
		return nil, err
	}
	log.Printf("fsdb: create record in table %q set values=%v", table.name, redactFileValues(values))

	values = cloneValues(values)

	var id any
	var err error
	if v, ok := values["id"]; ok {
		id = v
	} else {
		id, err = table.GetNewID()
		if err != nil {
			return nil, err
		}
	}
	values["id"] = id

	now := nowUTC()
	values["create_datetime"] = now
	values["modify_datetime"] = now

	for name, field := range table.fields {
		if _, ok := values[name]; ok {
			continue
		}
		if field.def.Default != nil {
			values[name] = field.def.Default
		} else if field.def.Required {
			return nil, fmt.Errorf("fsdb: required field %q has no value and no default", name)
		}
	}

	for name := range values {
		if _, ok := table.fields[name]; !ok {
			log.Printf("fsdb: warning: dropping unknown field %q on create in table %q", name, table.name)
			delete(values, name)
		}
	}

	record, err := newRecord(table, id)
	if err != nil {
		return nil, err
	}

	exists, err := afero.DirExists(table.database.fs, record.path)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, fmt.Errorf("fsdb: record id %q already exists in table %q: uniqueness violated", record.idStr, table.name)
	}

	if err := table.database.fs.MkdirAll(record.path, 0o755); err != nil {
		return nil, fmt.Errorf("fsdb: creating record directory %q: %w", record.path, err)
	}

	dataValues := map[string]any{}
	for name, value := range values {
		if err := table.fields[name].Write(record, value, dataValues); err != nil {
			return nil, err
		}
	}
	if err := record.persist(dataValues); err != nil {
		return nil, err
	}

	table.recordIDs = append(table.recordIDs, id)

	return record, nil
}

// Write merges values into the record's persisted fields. Changing "id" is
// rejected; unknown field names are dropped with a warning.
func (r *Record) Write(values map[string]any) error {
	if err := r.checkAccess(); err != nil {
		return err
	}
	log.Printf("fsdb: write record %q in table %q set values=%v", r.idStr, r.table.name, redactFileValues(values))

	values = cloneValues(values)
	if _, ok := values["id"]; ok {
		return fmt.Errorf("fsdb: changing record id is not allowed")
	}
	if _, ok := values["id_str"]; ok {
		return fmt.Errorf("fsdb: changing record id_str is not allowed")
	}

	for name := range values {
		if _, ok := r.fields[name]; !ok {
			log.Printf("fsdb: warning: dropping write to unknown field %q in table %q", name, r.table.name)
			delete(values, name)
		}
	}

	// Cache invalidation precedes filesystem mutation (spec.md §5 ordering).
	r.table.cache().Delete(r.cacheKey)

	values["modify_datetime"] = nowUTC()

	dataValues := map[string]any{}
	if err := readJSON(r.fs(), r.dataPath, &dataValues); err != nil {
		return err
	}
	for name, field := range r.fields {
		if _, ok := dataValues[name]; ok {
			continue
		}
		if field.def.Default != nil {
			dataValues[name] = field.def.Default
		}
	}

	for name, value := range values {
		if err := r.fields[name].Write(r, value, dataValues); err != nil {
			return err
		}
	}

	return r.persist(dataValues)
}

// persist writes dataValues to data.json, pruning any key not in the
// table's current field set (spec.md §3: "unknown persisted keys are
// pruned on next write").
func (r *Record) persist(dataValues map[string]any) error {
	for name := range dataValues {
		if _, ok := r.fields[name]; !ok {
			log.Printf("fsdb: warning: pruning stale key %q from record %q in table %q", name, r.idStr, r.table.name)
		}
	}
	pruned := make(map[string]any, len(r.fields))
	for name := range r.fields {
		pruned[name] = dataValues[name]
	}
	return writeJSONAtomic(r.fs(), r.dataPath, pruned)
}

// Read returns the requested fields' values, or all declared fields if
// fieldNames is nil. Already-cached values are returned without touching
// disk; any requested field missing from the cache triggers a data.json
// read, after which the newly-read values are merged back into the cache
// under this record's cache key.
func (r *Record) Read(fieldNames []string) (map[string]any, error) {
	if err := r.checkAccess(); err != nil {
		return nil, err
	}

	if fieldNames == nil {
		fieldNames = make([]string, 0, len(r.fields))
		for name := range r.fields {
			fieldNames = append(fieldNames, name)
		}
	}

	valid := fieldNames[:0:0]
	for _, name := range fieldNames {
		if _, ok := r.fields[name]; !ok {
			log.Printf("fsdb: warning: read from unknown field %q in table %q", name, r.table.name)
			continue
		}
		valid = append(valid, name)
	}
	fieldNames = valid

	cached, _ := r.table.cache().Get(r.cacheKey)
	values, _ := cached.(map[string]any)
	if values == nil {
		values = map[string]any{}
	} else {
		cp := make(map[string]any, len(values))
		for k, v := range values {
			cp[k] = v
		}
		values = cp
	}

	var missing []string
	for _, name := range fieldNames {
		if _, ok := values[name]; !ok {
			missing = append(missing, name)
		}
	}

	if len(missing) > 0 {
		dataValues := map[string]any{}
		if err := readJSON(r.fs(), r.dataPath, &dataValues); err != nil {
			return nil, err
		}
		for _, name := range missing {
			field := r.fields[name]
			if _, ok := dataValues[name]; !ok {
				dataValues[name] = field.def.Default
			}
			value, err := field.Read(r, dataValues)
			if err != nil {
				return nil, err
			}
			values[name] = value
		}
		r.table.cache().Put(r.cacheKey, values)
	}

	result := make(map[string]any, len(fieldNames))
	for _, name := range fieldNames {
		result[name] = values[name]
	}
	return result, nil
}

// Delete removes the record's directory and all bookkeeping: cache entry,
// table membership, and finally marks the handle itself deleted.
func (r *Record) Delete() error {
	if err := r.checkAccess(); err != nil {
		return err
	}
	log.Printf("fsdb: delete record %q in table %q", r.idStr, r.table.name)

	r.table.cache().Delete(r.cacheKey)

	for i, id := range r.table.recordIDs {
		if id == r.id {
			r.table.recordIDs = append(r.table.recordIDs[:i], r.table.recordIDs[i+1:]...)
			break
		}
	}

	exists, err := afero.DirExists(r.fs(), r.path)
	if err != nil {
		return err
	}
	if exists {
		if err := r.fs().RemoveAll(r.path); err != nil {
			return fmt.Errorf("fsdb: deleting record directory %q: %w", r.path, err)
		}
	}

	r.deleted = true
	return nil
}

func cloneValues(values map[string]any) map[string]any {
	out := make(map[string]any, len(values))
	for k, v := range values {
		out[k] = v
	}
	return out
}

// redactFileValues keeps log lines from dumping raw attachment bytes.
func redactFileValues(values map[string]any) map[string]any {
	out := make(map[string]any, len(values))
	for k, v := range values {
		switch v.(type) {
		case FileValue, *FileValue, []FileListEntry, []*FileListEntry:
			out[k] = "<binary>"
		default:
			out[k] = v
		}
	}
	return out
}
