package fsdb

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDatabase(t *testing.T) *Database {
	t.Helper()
	fs := afero.NewMemMapFs()
	db, err := CreateDatabase(fs, "/root", "testdb")
	require.NoError(t, err)
	return db
}

func TestCreateTableDefaultSchema(t *testing.T) {
	t.Parallel()

	db := newTestDatabase(t)
	table, err := CreateTable(db, "users", []FieldDef{
		{Name: "name", Type: FieldStr, Required: true},
	})
	require.NoError(t, err)

	fields := table.Fields()
	assert.Equal(t, FieldInt, fields["id"].Type)
	assert.Contains(t, fields, "create_datetime")
	assert.Contains(t, fields, "modify_datetime")
	assert.Contains(t, fields, "name")
}

func TestCreateTableCustomIDType(t *testing.T) {
	t.Parallel()

	db := newTestDatabase(t)
	table, err := CreateTable(db, "events", []FieldDef{
		{Name: "id", Type: FieldDatetime},
	})
	require.NoError(t, err)

	assert.Equal(t, FieldDatetime, table.Fields()["id"].Type)
}

func TestCreateTableRejectsReservedFieldName(t *testing.T) {
	t.Parallel()

	db := newTestDatabase(t)
	_, err := CreateTable(db, "users", []FieldDef{
		{Name: "create_datetime", Type: FieldStr},
	})
	require.Error(t, err)
}

func TestCreateTableRejectsDuplicateName(t *testing.T) {
	t.Parallel()

	db := newTestDatabase(t)
	_, err := CreateTable(db, "users", nil)
	require.NoError(t, err)

	_, err = CreateTable(db, "users", nil)
	require.Error(t, err)
}

func TestCreateTableRejectsBadIDType(t *testing.T) {
	t.Parallel()

	db := newTestDatabase(t)
	_, err := CreateTable(db, "users", []FieldDef{
		{Name: "id", Type: FieldStr},
	})
	require.Error(t, err)
}

func TestTableGetNewIDSequential(t *testing.T) {
	t.Parallel()

	db := newTestDatabase(t)
	table, err := CreateTable(db, "users", nil)
	require.NoError(t, err)

	id1, err := table.GetNewID()
	require.NoError(t, err)
	assert.Equal(t, int64(1), id1)

	_, err = CreateRecord(table, map[string]any{"id": int64(1)})
	require.NoError(t, err)

	id2, err := table.GetNewID()
	require.NoError(t, err)
	assert.Equal(t, int64(2), id2)
}

func TestTableDeleteRemovesDirectoryAndBlocksAccess(t *testing.T) {
	t.Parallel()

	db := newTestDatabase(t)
	table, err := CreateTable(db, "users", nil)
	require.NoError(t, err)

	require.NoError(t, table.Delete())
	assert.NotContains(t, db.Tables(), "users")

	_, err = CreateRecord(table, map[string]any{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrObjectDeleted)
}

func TestTableSearchRecordsWithDomainAndOrder(t *testing.T) {
	t.Parallel()

	db := newTestDatabase(t)
	table, err := CreateTable(db, "users", []FieldDef{
		{Name: "name", Type: FieldStr},
		{Name: "age", Type: FieldInt},
	})
	require.NoError(t, err)

	_, err = CreateRecord(table, map[string]any{"name": "alice", "age": int64(30)})
	require.NoError(t, err)
	_, err = CreateRecord(table, map[string]any{"name": "bob", "age": int64(25)})
	require.NoError(t, err)
	_, err = CreateRecord(table, map[string]any{"name": "carol", "age": int64(40)})
	require.NoError(t, err)

	domain := Domain{Filter{Field: "age", Op: OpGe, Value: int64(30)}}
	records, err := table.SearchRecords(domain, "age asc", 0)
	require.NoError(t, err)
	require.Len(t, records, 2)

	values0, err := records[0].Read([]string{"name"})
	require.NoError(t, err)
	assert.Equal(t, "alice", values0["name"])

	values1, err := records[1].Read([]string{"name"})
	require.NoError(t, err)
	assert.Equal(t, "carol", values1["name"])
}

func TestTableSearchRecordsLimit(t *testing.T) {
	t.Parallel()

	db := newTestDatabase(t)
	table, err := CreateTable(db, "users", nil)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		_, err := CreateRecord(table, map[string]any{})
		require.NoError(t, err)
	}

	records, err := table.SearchRecords(nil, "", 2)
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestTableBrowseRecordsSkipsMissingIDs(t *testing.T) {
	t.Parallel()

	db := newTestDatabase(t)
	table, err := CreateTable(db, "users", nil)
	require.NoError(t, err)

	r, err := CreateRecord(table, map[string]any{})
	require.NoError(t, err)

	records, err := table.BrowseRecords([]any{r.ID(), int64(9999)})
	require.NoError(t, err)
	assert.Len(t, records, 1)
}
