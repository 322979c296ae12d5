package fsdb

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFieldRejectsInvalidType(t *testing.T) {
	t.Parallel()

	_, err := newField(nil, FieldDef{Name: "x", Type: "nonsense"})
	require.Error(t, err)
}

func TestNewFieldNormalizesName(t *testing.T) {
	t.Parallel()

	f, err := newField(nil, FieldDef{Name: "  Name  ", Type: FieldStr})
	require.NoError(t, err)
	assert.Equal(t, "name", f.Name())
}

func TestFieldDefToDictRoundTrip(t *testing.T) {
	t.Parallel()

	def := FieldDef{Name: "age", Type: FieldInt, Default: int64(18), Required: true, Unique: true}
	m := def.ToDict()

	parsed, err := FieldDefFromDict(m)
	require.NoError(t, err)
	assert.Equal(t, "age", parsed.Name)
	assert.Equal(t, FieldInt, parsed.Type)
	assert.Equal(t, true, parsed.Required)
	assert.Equal(t, true, parsed.Unique)
}

func TestFieldDefToDictOmitsFalseFlags(t *testing.T) {
	t.Parallel()

	def := FieldDef{Name: "age", Type: FieldInt}
	m := def.ToDict()

	_, hasRequired := m["required"]
	_, hasUnique := m["unique"]
	_, hasDefault := m["default"]
	assert.False(t, hasRequired)
	assert.False(t, hasUnique)
	assert.False(t, hasDefault)
}

func TestVal2StrAndStr2ValInt(t *testing.T) {
	t.Parallel()

	f, err := newField(nil, FieldDef{Name: "id", Type: FieldInt})
	require.NoError(t, err)

	s, err := f.Val2Str(int64(42))
	require.NoError(t, err)
	assert.Equal(t, "42", s)

	v, err := f.Str2Val(s)
	require.NoError(t, err)
	assert.Equal(t, int64(42), v)
}

func TestVal2StrAndStr2ValDatetime(t *testing.T) {
	t.Parallel()

	f, err := newField(nil, FieldDef{Name: "id", Type: FieldDatetime})
	require.NoError(t, err)

	now := time.Date(2026, 7, 30, 12, 0, 0, 123000, time.UTC)
	s, err := f.Val2Str(now)
	require.NoError(t, err)

	v, err := f.Str2Val(s)
	require.NoError(t, err)
	assert.True(t, now.Equal(v.(time.Time)))
}

func TestVal2StrTypeMismatch(t *testing.T) {
	t.Parallel()

	f, err := newField(nil, FieldDef{Name: "id", Type: FieldInt})
	require.NoError(t, err)

	_, err = f.Val2Str("not-an-int")
	require.Error(t, err)
}

func TestReservedFieldNames(t *testing.T) {
	t.Parallel()

	for _, name := range []string{"id", "id_str", "create_datetime", "modify_datetime", "data.json"} {
		assert.True(t, ReservedFieldNames[name], "%q should be reserved", name)
	}
	assert.False(t, ReservedFieldNames["description"])
}
