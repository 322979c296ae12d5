package fsdb

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/spf13/afero"
)

// writeJSONAtomic marshals value as canonical JSON (sorted keys courtesy of
// Go's map marshaling, 2-space indent) and writes it to path by writing a
// uniquely-named temp file first, then renaming it into place. A crash
// between the two steps leaves a stray "<name>.tmp-<uuid>" file behind
// rather than a torn target file. If that was a record's first write, the
// record directory has no data.json and LoadRecordIDs's orphan sweep removes
// the whole directory; a stray temp file beside an existing data.json, or in
// a table or database directory, is left in place.
func writeJSONAtomic(fs afero.Fs, path string, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return fmt.Errorf("fsdb: marshaling %q: %w", path, err)
	}

	dir := filepath.Dir(path)
	tmpPath := filepath.Join(dir, fmt.Sprintf("%s.tmp-%s", filepath.Base(path), uuid.NewString()))

	if err := afero.WriteFile(fs, tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("fsdb: writing temp file %q: %w", tmpPath, err)
	}
	if err := fs.Rename(tmpPath, path); err != nil {
		_ = fs.Remove(tmpPath)
		return fmt.Errorf("fsdb: renaming %q to %q: %w", tmpPath, path, err)
	}
	return nil
}

func readJSON(fs afero.Fs, path string, out any) error {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return fmt.Errorf("fsdb: reading %q: %w", path, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("fsdb: parsing %q: %w", path, err)
	}
	return nil
}
