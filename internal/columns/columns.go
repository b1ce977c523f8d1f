// Package columns translates between spreadsheet column labels and internal field names.
package columns

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"eventreg/internal/models"
)

var ErrMapping = errors.New("column mapping")

// MappingError means the label expected for a field is not present in the header.
type MappingError struct {
	Field  string
	Header []string
}

func (e *MappingError) Error() string {
	return fmt.Sprintf("no column for field %q in header %q", e.Field, e.Header)
}

func (e *MappingError) Is(target error) bool { return target == ErrMapping }

// DefaultLabels is the form layout of the Czech registration forms plus English
// equivalents. Several labels may map to one field.
var DefaultLabels = map[string]string{
	"Časová značka":                        models.FieldTimestamp,
	"Jméno":                                models.FieldFirstName,
	"Příjmení":                             models.FieldLastName,
	"Pohlaví":                              models.FieldSex,
	"E-mailová adresa":                     models.FieldEmail,
	"Uživatelské jméno na Wikipedii":       models.FieldUsername,
	"Na jmenovce bych chtěl/a mít uvedeno": models.FieldDisplayOnCard,
	"Místo, kde žijete":                    models.FieldPlace,
	"Moje aktivita na Wikipedii":           models.FieldActivity,
	"S čím byste z Wikikonference rád/a odcházel/a? Co byste se rád/a dozvěděl/a?": models.FieldExpectations,
	"Odebíráte náš newsletter?":                      models.FieldNewsletter,
	"Jaké oblasti vás zajímají?":                     models.FieldNewsletterTopics,
	"Chcete, abychom vám zajistili oběd?":            models.FieldLunch,
	"Prostor pro cokoli, co byste nám chtěli sdělit": models.FieldOther,
	"Stav ověření registrace":                        models.FieldVerified,
	"Chcete si objednat WikiTričko?":                 models.FieldTShirt,
	"Velikost":                                       models.FieldTShirtSize,
	"Střih":                                          models.FieldTShirtType,

	"Timestamp":           models.FieldTimestamp,
	"Name":                models.FieldName,
	"First name":          models.FieldFirstName,
	"Last name":           models.FieldLastName,
	"Email":               models.FieldEmail,
	"Email address":       models.FieldEmail,
	"Username":            models.FieldUsername,
	"Verification status": models.FieldVerified,
}

type Mapper struct {
	labels map[string]string
}

func New(labels map[string]string) *Mapper {
	m := &Mapper{labels: make(map[string]string, len(labels))}
	for k, v := range labels {
		m.labels[strings.TrimSpace(k)] = v
	}
	return m
}

func Default() *Mapper { return New(DefaultLabels) }

// LoadFile reads a YAML document of `label: field` pairs. The result replaces
// the defaults rather than extending them.
func LoadFile(path string) (*Mapper, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read column map: %w", err)
	}
	labels := map[string]string{}
	if err := yaml.Unmarshal(data, &labels); err != nil {
		return nil, fmt.Errorf("parse column map: %w", err)
	}
	if len(labels) == 0 {
		return nil, fmt.Errorf("column map %s is empty", path)
	}
	return New(labels), nil
}

// FieldName returns the internal field for a header label. Unknown labels are
// returned unchanged and end up as custom fields.
func (m *Mapper) FieldName(label string) string {
	label = strings.TrimSpace(label)
	if f, ok := m.labels[label]; ok {
		return f
	}
	return label
}

// ColumnIndex is the 0-based position of the first header label mapped to field.
func (m *Mapper) ColumnIndex(field string, header []string) (int, error) {
	for i, label := range header {
		if f, ok := m.labels[strings.TrimSpace(label)]; ok && f == field {
			return i, nil
		}
	}
	return 0, &MappingError{Field: field, Header: header}
}

func (m *Mapper) ColumnLetter(field string, header []string) (string, error) {
	i, err := m.ColumnIndex(field, header)
	if err != nil {
		return "", err
	}
	return Letter(i), nil
}

// Letter converts a 0-based column index to spreadsheet letters: 0 -> A, 25 -> Z, 26 -> AA.
func Letter(index int) string {
	if index < 0 {
		return ""
	}
	var buf []byte
	for n := index + 1; n > 0; n = (n - 1) / 26 {
		buf = append([]byte{byte('A' + (n-1)%26)}, buf...)
	}
	return string(buf)
}
