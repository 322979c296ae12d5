package fsdb

import (
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestScenarioS1IntegerIDTwoRecords mirrors spec.md §8 S1: an int-id table,
// two records, a database reopen, then a full search plus a single browse
// and read.
func TestScenarioS1IntegerIDTwoRecords(t *testing.T) {
	fs := afero.NewMemMapFs()
	db, err := CreateDatabase(fs, "/root", "s1")
	require.NoError(t, err)

	table, err := CreateTable(db, "test_table", []FieldDef{
		{Name: "val1", Type: FieldStr},
		{Name: "val2", Type: FieldDatetime},
		{Name: "val3", Type: FieldList},
	})
	require.NoError(t, err)

	v2a := time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)
	r1, err := CreateRecord(table, map[string]any{"val1": "test_val1-1", "val2": v2a})
	require.NoError(t, err)
	assert.Equal(t, int64(1), r1.ID())

	v2b := time.Date(2000, 1, 2, 0, 0, 0, 0, time.UTC)
	r2, err := CreateRecord(table, map[string]any{"val1": "test_val1-2", "val2": v2b})
	require.NoError(t, err)
	assert.Equal(t, int64(2), r2.ID())

	require.NoError(t, db.Close())
	db, err = OpenDatabase(fs, "/root", "s1")
	require.NoError(t, err)
	table = db.Table("test_table")
	require.NotNil(t, table)

	records, err := table.SearchRecords(nil, "", 0)
	require.NoError(t, err)
	assert.Len(t, records, 2)

	rec1, err := table.BrowseRecord(int64(1))
	require.NoError(t, err)
	require.NotNil(t, rec1)

	values, err := rec1.Read(nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1), values["id"])
	assert.Equal(t, "test_val1-1", values["val1"])
	assert.True(t, v2a.Equal(values["val2"].(time.Time)))
	assert.Nil(t, values["val3"])
	assert.NotNil(t, values["create_datetime"])
	assert.NotNil(t, values["modify_datetime"])
}

// TestScenarioS2DatetimeIDAndDomain mirrors spec.md §8 S2: a datetime-id
// table, three sequentially created rows, and domain searches over the
// middle row's id.
func TestScenarioS2DatetimeIDAndDomain(t *testing.T) {
	db := newTestDatabase(t)
	table, err := CreateTable(db, "test_table_datetime", []FieldDef{
		{Name: "id", Type: FieldDatetime},
	})
	require.NoError(t, err)

	r1, err := CreateRecord(table, map[string]any{})
	require.NoError(t, err)
	r2, err := CreateRecord(table, map[string]any{})
	require.NoError(t, err)
	r3, err := CreateRecord(table, map[string]any{})
	require.NoError(t, err)
	_ = r1
	_ = r3
	d := r2.ID()

	ge, err := table.SearchRecords(Domain{Filter{Field: "id", Op: OpGe, Value: d}}, "", 0)
	require.NoError(t, err)
	assert.Len(t, ge, 2)

	gt, err := table.SearchRecords(Domain{Filter{Field: "id", Op: OpGt, Value: d}}, "", 0)
	require.NoError(t, err)
	assert.Len(t, gt, 1)

	mixed, err := table.SearchRecords(Domain{
		"&",
		Filter{Field: "id", Op: OpNe, Value: d},
		"|",
		Filter{Field: "id", Op: OpLt, Value: d},
		Filter{Field: "id", Op: OpGt, Value: d},
	}, "", 0)
	require.NoError(t, err)
	assert.Len(t, mixed, 2)
}

// TestScenarioS3EditAndPersistence mirrors spec.md §8 S3: write, reopen,
// and check both the edited value and a strictly-advanced modify_datetime.
func TestScenarioS3EditAndPersistence(t *testing.T) {
	fs := afero.NewMemMapFs()
	db, err := CreateDatabase(fs, "/root", "s3")
	require.NoError(t, err)

	table, err := CreateTable(db, "test_table", []FieldDef{
		{Name: "val1", Type: FieldStr},
		{Name: "val2", Type: FieldDatetime},
	})
	require.NoError(t, err)

	rec1, err := CreateRecord(table, map[string]any{
		"val1": "test_val1-1",
		"val2": time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	before, err := rec1.Read([]string{"modify_datetime"})
	require.NoError(t, err)
	modifyBefore := before["modify_datetime"].(time.Time)

	require.NoError(t, rec1.Write(map[string]any{
		"val1": "edited_1",
		"val2": time.Date(2000, 10, 1, 0, 0, 0, 0, time.UTC),
	}))

	require.NoError(t, db.Close())
	db, err = OpenDatabase(fs, "/root", "s3")
	require.NoError(t, err)
	table = db.Table("test_table")

	reopened, err := table.BrowseRecord(rec1.ID())
	require.NoError(t, err)
	values, err := reopened.Read(nil)
	require.NoError(t, err)

	assert.Equal(t, "edited_1", values["val1"])
	assert.True(t, time.Date(2000, 10, 1, 0, 0, 0, 0, time.UTC).Equal(values["val2"].(time.Time)))
	assert.True(t, values["modify_datetime"].(time.Time).After(modifyBefore))
}

// TestScenarioS4FileFieldRoundTrip mirrors spec.md §8 S4: create with a
// file value, read it back lazily, overwrite it, then clear it.
func TestScenarioS4FileFieldRoundTrip(t *testing.T) {
	db := newTestDatabase(t)
	table, err := CreateTable(db, "docs", []FieldDef{
		{Name: "file", Type: FieldFile},
	})
	require.NoError(t, err)

	r, err := CreateRecord(table, map[string]any{
		"file": FileValue{Name: "f1.txt", Data: []byte("TEST TEXT 1")},
	})
	require.NoError(t, err)

	exists, err := afero.Exists(db.fs, r.path+"/f1.txt")
	require.NoError(t, err)
	assert.True(t, exists)

	values, err := r.Read([]string{"file"})
	require.NoError(t, err)
	ref := values["file"].(*FileRef)
	assert.Equal(t, "f1.txt", ref.Name)
	assert.Nil(t, ref.Data)

	data, err := ref.Load(db.fs)
	require.NoError(t, err)
	assert.Equal(t, "TEST TEXT 1", string(data))

	require.NoError(t, r.Write(map[string]any{
		"file": FileValue{Name: "f2.txt", Data: []byte("TEST TEXT 2")},
	}))

	exists, _ = afero.Exists(db.fs, r.path+"/f1.txt")
	assert.False(t, exists)
	exists, _ = afero.Exists(db.fs, r.path+"/f2.txt")
	assert.True(t, exists)

	require.NoError(t, r.Write(map[string]any{"file": nil}))
	exists, _ = afero.Exists(db.fs, r.path+"/f1.txt")
	assert.False(t, exists)
	exists, _ = afero.Exists(db.fs, r.path+"/f2.txt")
	assert.False(t, exists)
}

// TestScenarioS5FileList mirrors spec.md §8 S5: file_list directory
// contents are replaced wholesale on write, and bad entries are rejected.
func TestScenarioS5FileList(t *testing.T) {
	db := newTestDatabase(t)
	table, err := CreateTable(db, "docs", []FieldDef{
		{Name: "files", Type: FieldFileList},
	})
	require.NoError(t, err)

	f1 := FileListEntry{Name: "f1.txt", Data: []byte("1")}
	f2 := FileListEntry{Name: "f2.txt", Data: []byte("2")}
	f3 := FileListEntry{Name: "f3.txt", Data: []byte("3")}

	r, err := CreateRecord(table, map[string]any{"files": []FileListEntry{f1, f2}})
	require.NoError(t, err)

	entries, err := afero.ReadDir(db.fs, r.path+"/files")
	require.NoError(t, err)
	assert.Len(t, entries, 2)

	require.NoError(t, r.Write(map[string]any{"files": []FileListEntry{f2, f3}}))

	entries, err = afero.ReadDir(db.fs, r.path+"/files")
	require.NoError(t, err)
	names := map[string]bool{}
	for _, e := range entries {
		names[e.Name()] = true
	}
	assert.True(t, names["f2.txt"])
	assert.True(t, names["f3.txt"])
	assert.False(t, names["f1.txt"])

	err = r.Write(map[string]any{"files": []FileListEntry{f2, f2}})
	require.Error(t, err, "duplicate filenames in a single file_list write must be rejected")

	err = r.Write(map[string]any{"files": []FileListEntry{{Name: "../escape", Data: []byte("x")}}})
	require.Error(t, err, "unsanitized filenames must be rejected")
}

// TestScenarioS6HandleInvalidation mirrors spec.md §8 S6: closing the
// database blocks every handle descended from it, and deleting
// record/table/database in turn blocks each one specifically.
func TestScenarioS6HandleInvalidation(t *testing.T) {
	fs := afero.NewMemMapFs()
	db, err := CreateDatabase(fs, "/root", "s6")
	require.NoError(t, err)
	table, err := CreateTable(db, "tbl", nil)
	require.NoError(t, err)
	rec, err := CreateRecord(table, map[string]any{})
	require.NoError(t, err)

	require.NoError(t, db.Close())

	_, err = CreateTable(db, "other", nil)
	require.ErrorIs(t, err, ErrDatabaseClosed)

	err = table.Delete()
	require.ErrorIs(t, err, ErrDatabaseClosed)

	_, err = rec.Read(nil)
	require.ErrorIs(t, err, ErrDatabaseClosed)

	db, err = OpenDatabase(fs, "/root", "s6")
	require.NoError(t, err)
	table = db.Table("tbl")
	require.NotNil(t, table)
	rec, err = table.BrowseRecord(rec.ID())
	require.NoError(t, err)
	require.NotNil(t, rec)

	require.NoError(t, rec.Delete())
	_, err = rec.Read(nil)
	require.ErrorIs(t, err, ErrObjectDeleted)

	require.NoError(t, table.Delete())
	_, err = table.SearchRecords(nil, "", 0)
	require.ErrorIs(t, err, ErrObjectDeleted)

	require.NoError(t, db.Delete())
	_, err = CreateTable(db, "another", nil)
	require.ErrorIs(t, err, ErrObjectDeleted)
}
