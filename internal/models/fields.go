package models

import "strings"

// Internal field names. Spreadsheet labels are mapped onto these by the column mapper.
const (
	FieldTimestamp        = "timestamp"
	FieldName             = "name"
	FieldFirstName        = "first_name"
	FieldLastName         = "last_name"
	FieldSex              = "sex"
	FieldEmail            = "email"
	FieldUsername         = "username"
	FieldDisplayOnCard    = "display_on_card"
	FieldPlace            = "place"
	FieldActivity         = "activity"
	FieldExpectations     = "expectations"
	FieldNewsletter       = "newsletter_bool"
	FieldNewsletterTopics = "newsletter_topics"
	FieldLunch            = "lunch"
	FieldOther            = "other"
	FieldVerified         = "verified"
	FieldTShirt           = "tshirt"
	FieldTShirtSize       = "tshirt_size"
	FieldTShirtType       = "tshirt_type"
)

// Fields is the materialized content of one spreadsheet row. Columns without a
// known internal name are kept in Extra under their sheet label.
type Fields struct {
	Timestamp        string
	Name             string
	FirstName        string
	LastName         string
	Sex              string
	Email            string
	Username         string
	DisplayOnCard    string
	Place            string
	Activity         string
	Expectations     string
	Newsletter       string
	NewsletterTopics string
	Lunch            string
	Other            string
	VerificationCell string
	TShirt           string
	TShirtSize       string
	TShirtType       string

	Extra map[string]string
}

var knownFields = []struct {
	name string
	ref  func(*Fields) *string
}{
	{FieldTimestamp, func(f *Fields) *string { return &f.Timestamp }},
	{FieldName, func(f *Fields) *string { return &f.Name }},
	{FieldFirstName, func(f *Fields) *string { return &f.FirstName }},
	{FieldLastName, func(f *Fields) *string { return &f.LastName }},
	{FieldSex, func(f *Fields) *string { return &f.Sex }},
	{FieldEmail, func(f *Fields) *string { return &f.Email }},
	{FieldUsername, func(f *Fields) *string { return &f.Username }},
	{FieldDisplayOnCard, func(f *Fields) *string { return &f.DisplayOnCard }},
	{FieldPlace, func(f *Fields) *string { return &f.Place }},
	{FieldActivity, func(f *Fields) *string { return &f.Activity }},
	{FieldExpectations, func(f *Fields) *string { return &f.Expectations }},
	{FieldNewsletter, func(f *Fields) *string { return &f.Newsletter }},
	{FieldNewsletterTopics, func(f *Fields) *string { return &f.NewsletterTopics }},
	{FieldLunch, func(f *Fields) *string { return &f.Lunch }},
	{FieldOther, func(f *Fields) *string { return &f.Other }},
	{FieldVerified, func(f *Fields) *string { return &f.VerificationCell }},
	{FieldTShirt, func(f *Fields) *string { return &f.TShirt }},
	{FieldTShirtSize, func(f *Fields) *string { return &f.TShirtSize }},
	{FieldTShirtType, func(f *Fields) *string { return &f.TShirtType }},
}

func knownRef(f *Fields, name string) *string {
	for _, k := range knownFields {
		if k.name == name {
			return k.ref(f)
		}
	}
	return nil
}

func (f *Fields) Get(name string) (string, bool) {
	if p := knownRef(f, name); p != nil {
		return *p, true
	}
	v, ok := f.Extra[name]
	return v, ok
}

func (f *Fields) Set(name, value string) {
	if p := knownRef(f, name); p != nil {
		*p = value
		return
	}
	if f.Extra == nil {
		f.Extra = map[string]string{}
	}
	f.Extra[name] = value
}

// Map flattens the record into field name -> value, omitting empty known fields.
func (f Fields) Map() map[string]string {
	out := make(map[string]string, len(f.Extra)+8)
	for k, v := range f.Extra {
		out[k] = v
	}
	for _, k := range knownFields {
		if v := *k.ref(&f); v != "" {
			out[k.name] = v
		}
	}
	return out
}

func FieldsFromMap(m map[string]string) Fields {
	var f Fields
	for k, v := range m {
		f.Set(k, v)
	}
	return f
}

// NormalizeEmail is the comparison form of an address used for lookups and tokens.
func NormalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
