package columns

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLetter(t *testing.T) {
	cases := map[int]string{
		0:   "A",
		1:   "B",
		25:  "Z",
		26:  "AA",
		27:  "AB",
		51:  "AZ",
		52:  "BA",
		701: "ZZ",
		702: "AAA",
	}
	for idx, want := range cases {
		assert.Equal(t, want, Letter(idx), "index %d", idx)
	}
	assert.Equal(t, "", Letter(-1))
}

func TestMapper_ColumnLetter(t *testing.T) {
	m := Default()

	letter, err := m.ColumnLetter("email", []string{"Timestamp", "Email", "Name"})
	require.NoError(t, err)
	assert.Equal(t, "B", letter)

	letter, err = m.ColumnLetter("verified", []string{"Časová značka", "Jméno", "Příjmení", "Stav ověření registrace"})
	require.NoError(t, err)
	assert.Equal(t, "D", letter)
}

func TestMapper_ColumnLetter_MissingLabel(t *testing.T) {
	m := Default()

	_, err := m.ColumnLetter("phone", []string{"Timestamp", "Email", "Name"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMapping))

	var me *MappingError
	require.True(t, errors.As(err, &me))
	assert.Equal(t, "phone", me.Field)
}

func TestMapper_ColumnLetter_FirstMatchWins(t *testing.T) {
	m := Default()

	letter, err := m.ColumnLetter("email", []string{"Note", "E-mailová adresa", "Email"})
	require.NoError(t, err)
	assert.Equal(t, "B", letter)
}

func TestMapper_FieldName(t *testing.T) {
	m := Default()

	assert.Equal(t, "email", m.FieldName("Email"))
	assert.Equal(t, "first_name", m.FieldName(" Jméno "))
	assert.Equal(t, "Poznámka organizátora", m.FieldName("Poznámka organizátora"))
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "columns.yaml")
	require.NoError(t, os.WriteFile(path, []byte("\"E-mail\": email\n\"Telefon\": phone\n"), 0o644))

	m, err := LoadFile(path)
	require.NoError(t, err)

	letter, err := m.ColumnLetter("phone", []string{"E-mail", "Telefon"})
	require.NoError(t, err)
	assert.Equal(t, "B", letter)

	// defaults are replaced, not merged
	assert.Equal(t, "Email", m.FieldName("Email"))
}

func TestLoadFile_Empty(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "columns.yaml")
	require.NoError(t, os.WriteFile(path, []byte(""), 0o644))

	_, err := LoadFile(path)
	assert.Error(t, err)
}
