// Package storage defines the persistence boundary for events, registrations, mail texts
// and the verification questionnaire.
package storage

import (
	"context"
	"errors"

	"eventreg/internal/models"
)

var (
	ErrNotFound       = errors.New("not found")
	ErrDuplicateTable = errors.New("spreadsheet already registered for another event")
)

type EventStore interface {
	CreateEvent(ctx context.Context, ev *models.Event) error
	GetEvent(ctx context.Context, id int64) (*models.Event, error)
	// FindEvent resolves an operator reference: a numeric id or an event name.
	FindEvent(ctx context.Context, ref string) (*models.Event, error)
	ListEvents(ctx context.Context) ([]models.Event, error)
	UpdateEventHeader(ctx context.Context, id int64, header []string, drift bool) error
	// DeleteEvent removes the event together with its registrations, mail texts,
	// questions and answers.
	DeleteEvent(ctx context.Context, id int64) error
}

type RegistrationStore interface {
	// ListRegistrations returns the registrations of an event ordered by row.
	ListRegistrations(ctx context.Context, eventID int64) ([]models.Registration, error)
	FindByEventAndRow(ctx context.Context, eventID int64, row int) (*models.Registration, error)
	FindByEventAndEmail(ctx context.Context, eventID int64, email string) ([]models.Registration, error)
	DeleteAllForEvent(ctx context.Context, eventID int64) error
	// Upsert inserts reg when reg.ID is zero and assigns the new id, otherwise updates it.
	Upsert(ctx context.Context, reg *models.Registration) error
}

type MailTextStore interface {
	SetMailText(ctx context.Context, mt models.MailText) error
	GetMailText(ctx context.Context, eventID int64, mailType string) (*models.MailText, error)
}

type QuestionStore interface {
	// AddQuestion assigns q.ID. Questions are listed in the order they were added.
	AddQuestion(ctx context.Context, q *models.Question) error
	ListQuestions(ctx context.Context, eventID int64) ([]models.Question, error)
	// DeleteQuestion removes the question with its answers.
	DeleteQuestion(ctx context.Context, id int64) error
	// SetAnswer inserts or replaces the answer of one email to one question.
	SetAnswer(ctx context.Context, a models.Answer) error
	// ListAnswers returns the answers of email, or of every email when email is empty.
	ListAnswers(ctx context.Context, eventID int64, email string) ([]models.Answer, error)
}

type Store interface {
	EventStore
	RegistrationStore
	MailTextStore
	QuestionStore
	Close() error
}
