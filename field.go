package fsdb

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// FieldType identifies one of the ten supported field kinds.
type FieldType string

const (
	FieldBool     FieldType = "bool"
	FieldStr      FieldType = "str"
	FieldInt      FieldType = "int"
	FieldFloat    FieldType = "float"
	FieldList     FieldType = "list"
	FieldTuple    FieldType = "tuple"
	FieldDict     FieldType = "dict"
	FieldDatetime FieldType = "datetime"
	FieldFile     FieldType = "file"
	FieldFileList FieldType = "file_list"
)

func validFieldType(t FieldType) bool {
	switch t {
	case FieldBool, FieldStr, FieldInt, FieldFloat, FieldList, FieldTuple, FieldDict,
		FieldDatetime, FieldFile, FieldFileList:
		return true
	default:
		return false
	}
}

// DatetimeLayout is the wire format for datetime fields: filename-safe
// (usable as a record directory name when id has type datetime) and
// microsecond precision.
const DatetimeLayout = "2006-01-02T15-04-05.000000"

// nowUTC returns the current instant truncated to microsecond precision,
// matching DatetimeLayout's wire resolution. Go's time.Now() carries
// nanoseconds; generating a value at full precision and persisting it at
// microsecond precision would leave an in-memory id (or record_ids entry)
// unequal to the value read back from disk, unlike Python's datetime.utcnow(),
// which is natively microsecond-precision. Every datetime generated for
// persistence (ids, create_datetime, modify_datetime) must go through this.
func nowUTC() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

// Tuple distinguishes a tuple-valued read result from a plain list: both
// are persisted as a JSON array, but a tuple field must read back as Tuple,
// not []any.
type Tuple []any

// FileValue is supplied on write for a "file" field.
type FileValue struct {
	Name string
	Data []byte
}

// FileListEntry is one element supplied on write for a "file_list" field.
type FileListEntry struct {
	Name string
	Data []byte
}

// FileRef is returned on read for a "file" field or as an element of a
// "file_list" read. Data is always nil; callers load bytes lazily via Load.
type FileRef struct {
	Name string
	Data []byte
	Path string
}

// ReservedFieldNames are names a user-declared field may never use: the
// data file itself, plus the three system fields that are always appended
// to a table's schema (a user schema may declare "id" only to pick its
// type; "create_datetime"/"modify_datetime" are always system-owned).
var ReservedFieldNames = map[string]bool{
	"data.json":        true,
	"id":               true,
	"id_str":           true,
	"create_datetime":  true,
	"modify_datetime":  true,
}

// FieldDef is the wire descriptor for a field, as persisted in a table's
// data.json under "fields".
type FieldDef struct {
	Name     string
	Type     FieldType
	Default  any
	Required bool
	Unique   bool
}

// ToDict renders the descriptor as the canonical map persisted to JSON;
// encoding/json sorts map keys alphabetically, giving "sorted keys" output
// for free.
func (d FieldDef) ToDict() map[string]any {
	m := map[string]any{
		"name": d.Name,
		"type": string(d.Type),
	}
	if d.Default != nil {
		m["default"] = d.Default
	}
	if d.Required {
		m["required"] = true
	}
	if d.Unique {
		m["unique"] = true
	}
	return m
}

// FieldDefFromDict parses a field descriptor map as read from a table's
// data.json.
func FieldDefFromDict(m map[string]any) (FieldDef, error) {
	name, _ := m["name"].(string)
	typ, _ := m["type"].(string)
	if name == "" || typ == "" {
		return FieldDef{}, fmt.Errorf("fsdb: field descriptor missing name or type: %v", m)
	}
	d := FieldDef{
		Name:    strings.ToLower(strings.TrimSpace(name)),
		Type:    FieldType(strings.ToLower(strings.TrimSpace(typ))),
		Default: m["default"],
	}
	if req, ok := m["required"].(bool); ok {
		d.Required = req
	}
	if uniq, ok := m["unique"].(bool); ok {
		d.Unique = uniq
	}
	return d, nil
}

// Field is the runtime representation of a table field: its descriptor plus
// a read-only back-reference to the owning table, used only for lookups
// (filesystem root, sibling fields) and access-guard propagation.
type Field struct {
	def   FieldDef
	table *Table
}

func newField(table *Table, def FieldDef) (*Field, error) {
	def.Name = strings.ToLower(strings.TrimSpace(def.Name))
	def.Type = FieldType(strings.ToLower(strings.TrimSpace(string(def.Type))))
	f := &Field{def: def, table: table}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return f, nil
}

// Name returns the field's (already lower-cased, trimmed) name.
func (f *Field) Name() string { return f.def.Name }

// Type returns the field's declared type.
func (f *Field) Type() FieldType { return f.def.Type }

// Def returns a copy of the field's descriptor.
func (f *Field) Def() FieldDef { return f.def }

func (f *Field) checkAccess() error {
	if f.table == nil {
		return nil
	}
	return f.table.checkAccess()
}

// Validate checks the field descriptor is internally consistent.
func (f *Field) Validate() error {
	if f.def.Name == "" {
		return fmt.Errorf("fsdb: field has empty name")
	}
	if !validFieldType(f.def.Type) {
		tableName := ""
		if f.table != nil {
			tableName = f.table.name
		}
		return fmt.Errorf("fsdb: field %q of table %q has invalid type %q", f.def.Name, tableName, f.def.Type)
	}
	return nil
}

// Val2Str converts a scalar value to its directory/string-safe
// representation. Only defined for types that can serve as an id: str, int,
// float, datetime.
func (f *Field) Val2Str(val any) (string, error) {
	switch f.def.Type {
	case FieldStr:
		s, ok := val.(string)
		if !ok {
			return "", fmt.Errorf("fsdb: val2str: expected string for field %q, got %T", f.def.Name, val)
		}
		return s, nil
	case FieldInt:
		switch n := val.(type) {
		case int64:
			return strconv.FormatInt(n, 10), nil
		case int:
			return strconv.Itoa(n), nil
		default:
			return "", fmt.Errorf("fsdb: val2str: expected int for field %q, got %T", f.def.Name, val)
		}
	case FieldFloat:
		fl, ok := val.(float64)
		if !ok {
			return "", fmt.Errorf("fsdb: val2str: expected float for field %q, got %T", f.def.Name, val)
		}
		return strconv.FormatFloat(fl, 'g', -1, 64), nil
	case FieldDatetime:
		t, ok := val.(time.Time)
		if !ok {
			return "", fmt.Errorf("fsdb: val2str: expected time.Time for field %q, got %T", f.def.Name, val)
		}
		return t.UTC().Format(DatetimeLayout), nil
	default:
		return "", fmt.Errorf("fsdb: unsupported val2str type %q", f.def.Type)
	}
}

// Str2Val parses a string-safe representation back into a value. The
// inverse of Val2Str; used to turn a record directory name back into the
// id's runtime value.
func (f *Field) Str2Val(s string) (any, error) {
	switch f.def.Type {
	case FieldStr:
		return s, nil
	case FieldInt:
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("fsdb: str2val: invalid int %q for field %q: %w", s, f.def.Name, err)
		}
		return n, nil
	case FieldFloat:
		fl, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, fmt.Errorf("fsdb: str2val: invalid float %q for field %q: %w", s, f.def.Name, err)
		}
		return fl, nil
	case FieldDatetime:
		t, err := time.Parse(DatetimeLayout, s)
		if err != nil {
			return nil, fmt.Errorf("fsdb: str2val: invalid datetime %q for field %q: %w", s, f.def.Name, err)
		}
		return t.UTC(), nil
	default:
		return nil, fmt.Errorf("fsdb: unsupported str2val type %q", f.def.Type)
	}
}
