package models

import "strings"

type Event struct {
	ID        int64
	TableID   string // spreadsheet id
	Name      string
	SheetName string

	// Header is the external column labels as last adopted; index i is column Letter(i).
	Header      []string
	HeaderDrift bool
	SkipRows    int

	FromMail string

	VerifiedURL        string
	AlreadyVerifiedURL string
	InvalidTokenURL    string
}

type Registration struct {
	ID        int64
	EventID   int64
	Row       int // 1-based sheet row
	Fields    Fields
	Confirmed bool
	Verified  bool
}

func (r Registration) FullName() string {
	if n := strings.TrimSpace(r.Fields.Name); n != "" {
		return n
	}
	return strings.TrimSpace(r.Fields.FirstName + " " + r.Fields.LastName)
}

const (
	MailConfirm = "confirm"
	MailVerify  = "verify"
)

type MailText struct {
	EventID int64
	Type    string // confirm/verify
	Subject string
	Body    string
}

func ValidMailType(t string) bool {
	return t == MailConfirm || t == MailVerify
}

const (
	QuestionOpen   = "open"
	QuestionClosed = "close"
)

// Question is asked on the verification link; a participant is verified only
// after answering every question that applies to them.
type Question struct {
	ID      int64
	EventID int64
	Name    string
	Type    string   // open/close
	Choices []string // close questions only

	// Registrations whose SkipField equals SkipValue are not asked, e.g. the
	// meal choice of participants who do not want lunch.
	SkipField string
	SkipValue string
}

func ValidQuestionType(t string) bool {
	return t == QuestionOpen || t == QuestionClosed
}

func (q Question) AppliesTo(reg Registration) bool {
	if q.SkipField == "" {
		return true
	}
	v, _ := reg.Fields.Get(q.SkipField)
	return !strings.EqualFold(strings.TrimSpace(v), strings.TrimSpace(q.SkipValue))
}

// Answer belongs to an email rather than a registration, since a pull recreates
// registrations.
type Answer struct {
	EventID    int64
	QuestionID int64
	Email      string
	Value      string
}
