package fsdb

import "fmt"

// Read produces the user-visible value for this field from a record's
// persisted data_values, delegating to the file-specific read path for
// "file"/"file_list" fields.
func (f *Field) Read(record *Record, dataValues map[string]any) (any, error) {
	if err := f.checkAccess(); err != nil {
		return nil, err
	}

	switch f.def.Type {
	case FieldFile:
		return f.readFile(record, dataValues)
	case FieldFileList:
		return f.readFileList(record)
	case FieldDatetime:
		raw, ok := dataValues[f.def.Name]
		if !ok || raw == nil {
			return nil, nil
		}
		s, ok := raw.(string)
		if !ok {
			return nil, newFieldError(f, "datetime value is not a string")
		}
		return f.Str2Val(s)
	case FieldTuple:
		raw, ok := dataValues[f.def.Name]
		if !ok || raw == nil {
			return nil, nil
		}
		list, ok := raw.([]any)
		if !ok {
			return nil, newFieldError(f, "tuple value is not a list")
		}
		return Tuple(list), nil
	case FieldInt:
		raw, ok := dataValues[f.def.Name]
		if !ok || raw == nil {
			return nil, nil
		}
		switch n := raw.(type) {
		case int64:
			return n, nil
		case int:
			return int64(n), nil
		case float64:
			// Round-tripped through JSON, which has no integer type: every
			// number decodes into float64 when the target is interface{}.
			return int64(n), nil
		default:
			return nil, newFieldError(f, "int value has unexpected type")
		}
	default:
		return dataValues[f.def.Name], nil
	}
}

// Write encodes value into dataValues (the in-memory map that will be
// persisted to data.json), delegating to the file-specific write path for
// "file"/"file_list" fields.
func (f *Field) Write(record *Record, value any, dataValues map[string]any) error {
	if err := f.checkAccess(); err != nil {
		return err
	}

	switch f.def.Type {
	case FieldFile:
		return f.writeFile(record, value, dataValues)
	case FieldFileList:
		return f.writeFileList(record, value)
	case FieldDatetime:
		if value == nil {
			dataValues[f.def.Name] = nil
			return nil
		}
		s, err := f.Val2Str(value)
		if err != nil {
			return err
		}
		dataValues[f.def.Name] = s
		return nil
	case FieldTuple:
		if value == nil {
			dataValues[f.def.Name] = nil
			return nil
		}
		switch v := value.(type) {
		case Tuple:
			dataValues[f.def.Name] = []any(v)
		case []any:
			dataValues[f.def.Name] = v
		default:
			return newFieldError(f, "tuple value must be Tuple or []any")
		}
		return nil
	case FieldBool, FieldStr, FieldInt, FieldFloat, FieldList, FieldDict:
		dataValues[f.def.Name] = value
		return nil
	default:
		return newFieldError(f, "unsupported field type for write")
	}
}

func newFieldError(f *Field, msg string) error {
	tableName := ""
	if f.table != nil {
		tableName = f.table.name
	}
	return fmt.Errorf("fsdb: field %q of table %q: %s", f.def.Name, tableName, msg)
}
