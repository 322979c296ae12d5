package fsdb

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/afero"
)

const dataFileName = "data.json"

// Load reads the attachment's bytes from disk. Read never populates Data
// eagerly (spec.md §4.3): callers load lazily via this method.
func (r FileRef) Load(fs afero.Fs) ([]byte, error) {
	return afero.ReadFile(fs, r.Path)
}

func (f *Field) readFile(record *Record, dataValues map[string]any) (any, error) {
	raw, ok := dataValues[f.def.Name]
	if !ok || raw == nil {
		dataValues[f.def.Name] = nil
		return nil, nil
	}
	filename, ok := raw.(string)
	if !ok {
		return nil, newFieldError(f, "file value is not a string filename")
	}

	filePath := filepath.Join(record.path, filename)
	exists, err := afero.Exists(record.fs(), filePath)
	if err != nil {
		return nil, err
	}
	if !exists {
		dataValues[f.def.Name] = nil
		return nil, nil
	}

	return &FileRef{Name: filename, Data: nil, Path: filePath}, nil
}

func (f *Field) writeFile(record *Record, value any, dataValues map[string]any) error {
	fs := record.fs()

	// remove the previous file, if any
	if raw, ok := dataValues[f.def.Name]; ok && raw != nil {
		if oldName, ok := raw.(string); ok {
			oldPath := filepath.Join(record.path, oldName)
			if exists, _ := afero.Exists(fs, oldPath); exists {
				if err := fs.Remove(oldPath); err != nil {
					return fmt.Errorf("fsdb: removing previous file %q: %w", oldPath, err)
				}
			}
		}
	}

	if value == nil {
		dataValues[f.def.Name] = nil
		return nil
	}

	fv, ok := value.(FileValue)
	if !ok {
		if p, ok := value.(*FileValue); ok && p != nil {
			fv = *p
		} else {
			return newFieldError(f, "file field value must be a FileValue{Name, Data}")
		}
	}
	if fv.Name == "" || fv.Data == nil {
		return newFieldError(f, "file field value must have a non-empty name and data")
	}
	if err := validateAttachmentName(record, f.def.Name, fv.Name, dataValues); err != nil {
		return err
	}

	filePath := filepath.Join(record.path, fv.Name)
	if err := afero.WriteFile(fs, filePath, fv.Data, 0o644); err != nil {
		return fmt.Errorf("fsdb: writing file %q: %w", filePath, err)
	}
	dataValues[f.def.Name] = fv.Name
	return nil
}

// validateAttachmentName enforces spec.md §3's attachment-name invariants:
// the name must equal its own sanitized form, may not equal "data.json" or
// any declared field name, and may not collide with another "file" field's
// currently-stored filename on the same record.
func validateAttachmentName(record *Record, ownField, name string, dataValues map[string]any) error {
	if name != Sanitize(name) {
		return fmt.Errorf("fsdb: filename %q is not equal to its sanitized form", name)
	}
	if name == dataFileName {
		return fmt.Errorf("fsdb: filename %q is a reserved name", name)
	}
	for fname := range record.fields {
		if name == fname {
			return fmt.Errorf("fsdb: filename %q collides with field name", name)
		}
	}
	for fname, other := range record.fields {
		if fname == ownField || other.def.Type != FieldFile {
			continue
		}
		if existing, ok := dataValues[fname].(string); ok && existing == name {
			return fmt.Errorf("fsdb: filename %q conflicts with value of field %q", name, fname)
		}
	}
	return nil
}

func (f *Field) readFileList(record *Record) (any, error) {
	dirPath := filepath.Join(record.path, f.def.Name)
	fs := record.fs()

	exists, err := afero.DirExists(fs, dirPath)
	if err != nil {
		return nil, err
	}
	if !exists {
		return []*FileRef{}, nil
	}

	entries, err := afero.ReadDir(fs, dirPath)
	if err != nil {
		return nil, err
	}

	refs := make([]*FileRef, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		refs = append(refs, &FileRef{
			Name: entry.Name(),
			Data: nil,
			Path: filepath.Join(dirPath, entry.Name()),
		})
	}
	return refs, nil
}

func (f *Field) writeFileList(record *Record, value any) error {
	fs := record.fs()
	dirPath := filepath.Join(record.path, f.def.Name)

	var entries []FileListEntry
	switch v := value.(type) {
	case nil:
		entries = nil
	case []FileListEntry:
		entries = v
	case []*FileListEntry:
		for _, e := range v {
			if e != nil {
				entries = append(entries, *e)
			}
		}
	default:
		return newFieldError(f, "file_list value must be []FileListEntry")
	}

	seen := make(map[string]bool, len(entries))
	for _, e := range entries {
		if e.Name == "" || e.Data == nil {
			return newFieldError(f, "file_list entry must have a non-empty name and data")
		}
		if e.Name != Sanitize(e.Name) {
			return fmt.Errorf("fsdb: filename %q is not equal to its sanitized form", e.Name)
		}
		if seen[e.Name] {
			return fmt.Errorf("fsdb: conflicting filename %q in file_list field %q", e.Name, f.def.Name)
		}
		seen[e.Name] = true
	}

	if exists, _ := afero.DirExists(fs, dirPath); exists {
		if err := fs.RemoveAll(dirPath); err != nil {
			return fmt.Errorf("fsdb: clearing file_list directory %q: %w", dirPath, err)
		}
	}
	if err := fs.MkdirAll(dirPath, 0o755); err != nil {
		return fmt.Errorf("fsdb: creating file_list directory %q: %w", dirPath, err)
	}

	for _, e := range entries {
		filePath := filepath.Join(dirPath, e.Name)
		if err := afero.WriteFile(fs, filePath, e.Data, 0o644); err != nil {
			return fmt.Errorf("fsdb: writing file_list entry %q: %w", filePath, err)
		}
	}
	return nil
}
