// Package storagetest holds behavior tests shared by every storage.Store implementation.
package storagetest

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eventreg/internal/models"
	"eventreg/internal/storage"
)

func Run(t *testing.T, newStore func(t *testing.T) storage.Store) {
	t.Run("Events", func(t *testing.T) { testEvents(t, newStore(t)) })
	t.Run("Registrations", func(t *testing.T) { testRegistrations(t, newStore(t)) })
	t.Run("MailTexts", func(t *testing.T) { testMailTexts(t, newStore(t)) })
	t.Run("QuestionsAndAnswers", func(t *testing.T) { testQuestions(t, newStore(t)) })
	t.Run("DeleteEventCascades", func(t *testing.T) { testDeleteCascade(t, newStore(t)) })
}

func testEvents(t *testing.T, s storage.Store) {
	ctx := context.Background()

	ev := &models.Event{TableID: "sheet-1", Name: "Wikikonference", SheetName: "Účastníci", SkipRows: 1}
	require.NoError(t, s.CreateEvent(ctx, ev))
	require.NotZero(t, ev.ID)

	err := s.CreateEvent(ctx, &models.Event{TableID: "sheet-1", Name: "Other"})
	assert.True(t, errors.Is(err, storage.ErrDuplicateTable))

	got, err := s.GetEvent(ctx, ev.ID)
	require.NoError(t, err)
	assert.Equal(t, "Účastníci", got.SheetName)
	assert.Empty(t, got.Header)

	byName, err := s.FindEvent(ctx, "Wikikonference")
	require.NoError(t, err)
	assert.Equal(t, ev.ID, byName.ID)

	_, err = s.FindEvent(ctx, "nope")
	assert.True(t, errors.Is(err, storage.ErrNotFound))

	require.NoError(t, s.UpdateEventHeader(ctx, ev.ID, []string{"Email", "Name"}, true))
	got, err = s.FindEvent(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, []string{"Email", "Name"}, got.Header)
	assert.True(t, got.HeaderDrift)

	assert.True(t, errors.Is(s.UpdateEventHeader(ctx, 999, nil, false), storage.ErrNotFound))

	list, err := s.ListEvents(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func testRegistrations(t *testing.T, s storage.Store) {
	ctx := context.Background()

	ev := &models.Event{TableID: "sheet-2", Name: "Meetup"}
	require.NoError(t, s.CreateEvent(ctx, ev))

	a := &models.Registration{EventID: ev.ID, Row: 3, Fields: models.Fields{Email: "B@x.com", Name: "Bob"}}
	b := &models.Registration{EventID: ev.ID, Row: 2, Fields: models.Fields{Email: "a@x.com", Extra: map[string]string{"Poznámka": "vegan"}}}
	require.NoError(t, s.Upsert(ctx, a))
	require.NoError(t, s.Upsert(ctx, b))
	require.NotZero(t, a.ID)
	require.NotEqual(t, a.ID, b.ID)

	regs, err := s.ListRegistrations(ctx, ev.ID)
	require.NoError(t, err)
	require.Len(t, regs, 2)
	assert.Equal(t, 2, regs[0].Row)
	assert.Equal(t, "vegan", regs[0].Fields.Extra["Poznámka"])

	byRow, err := s.FindByEventAndRow(ctx, ev.ID, 3)
	require.NoError(t, err)
	assert.Equal(t, "Bob", byRow.Fields.Name)

	_, err = s.FindByEventAndRow(ctx, ev.ID, 40)
	assert.True(t, errors.Is(err, storage.ErrNotFound))

	byEmail, err := s.FindByEventAndEmail(ctx, ev.ID, " b@X.com")
	require.NoError(t, err)
	require.Len(t, byEmail, 1)
	assert.Equal(t, a.ID, byEmail[0].ID)

	byEmail[0].Verified = true
	require.NoError(t, s.Upsert(ctx, &byEmail[0]))
	byRow, err = s.FindByEventAndRow(ctx, ev.ID, 3)
	require.NoError(t, err)
	assert.True(t, byRow.Verified)
	assert.False(t, byRow.Confirmed)

	require.NoError(t, s.DeleteAllForEvent(ctx, ev.ID))
	regs, err = s.ListRegistrations(ctx, ev.ID)
	require.NoError(t, err)
	assert.Empty(t, regs)
}

func testMailTexts(t *testing.T, s storage.Store) {
	ctx := context.Background()

	ev := &models.Event{TableID: "sheet-3", Name: "Mail"}
	require.NoError(t, s.CreateEvent(ctx, ev))

	_, err := s.GetMailText(ctx, ev.ID, models.MailConfirm)
	assert.True(t, errors.Is(err, storage.ErrNotFound))

	require.NoError(t, s.SetMailText(ctx, models.MailText{EventID: ev.ID, Type: models.MailConfirm, Body: "v1"}))
	require.NoError(t, s.SetMailText(ctx, models.MailText{EventID: ev.ID, Type: models.MailConfirm, Subject: "S", Body: "v2"}))

	mt, err := s.GetMailText(ctx, ev.ID, models.MailConfirm)
	require.NoError(t, err)
	assert.Equal(t, "v2", mt.Body)
	assert.Equal(t, "S", mt.Subject)
}

func testQuestions(t *testing.T, s storage.Store) {
	ctx := context.Background()

	ev := &models.Event{TableID: "sheet-5", Name: "Quiz"}
	other := &models.Event{TableID: "sheet-6", Name: "Other"}
	require.NoError(t, s.CreateEvent(ctx, ev))
	require.NoError(t, s.CreateEvent(ctx, other))

	meal := &models.Question{EventID: ev.ID, Name: "Volba jídla", Type: models.QuestionClosed,
		Choices: []string{"maso", "vegetarián"}, SkipField: models.FieldLunch, SkipValue: "Ne"}
	note := &models.Question{EventID: ev.ID, Name: "Poznámka", Type: models.QuestionOpen}
	require.NoError(t, s.AddQuestion(ctx, meal))
	require.NoError(t, s.AddQuestion(ctx, note))
	require.NotEqual(t, meal.ID, note.ID)
	assert.True(t, errors.Is(s.AddQuestion(ctx, &models.Question{EventID: 999, Name: "x", Type: models.QuestionOpen}), storage.ErrNotFound))

	qs, err := s.ListQuestions(ctx, ev.ID)
	require.NoError(t, err)
	require.Len(t, qs, 2)
	assert.Equal(t, *meal, qs[0])
	assert.Equal(t, "Poznámka", qs[1].Name)
	assert.Empty(t, qs[1].Choices)

	require.NoError(t, s.SetAnswer(ctx, models.Answer{EventID: ev.ID, QuestionID: meal.ID, Email: " A@x.com", Value: "maso"}))
	require.NoError(t, s.SetAnswer(ctx, models.Answer{EventID: ev.ID, QuestionID: meal.ID, Email: "a@x.com", Value: "vegetarián"}))
	require.NoError(t, s.SetAnswer(ctx, models.Answer{EventID: ev.ID, QuestionID: note.ID, Email: "b@x.com", Value: "nic"}))
	err = s.SetAnswer(ctx, models.Answer{EventID: other.ID, QuestionID: meal.ID, Email: "a@x.com", Value: "maso"})
	assert.True(t, errors.Is(err, storage.ErrNotFound), "question of another event")

	answers, err := s.ListAnswers(ctx, ev.ID, "a@X.com")
	require.NoError(t, err)
	assert.Equal(t, []models.Answer{{EventID: ev.ID, QuestionID: meal.ID, Email: "a@x.com", Value: "vegetarián"}}, answers)

	answers, err = s.ListAnswers(ctx, ev.ID, "")
	require.NoError(t, err)
	assert.Len(t, answers, 2)

	require.NoError(t, s.DeleteQuestion(ctx, meal.ID))
	assert.True(t, errors.Is(s.DeleteQuestion(ctx, meal.ID), storage.ErrNotFound))
	answers, err = s.ListAnswers(ctx, ev.ID, "a@x.com")
	require.NoError(t, err)
	assert.Empty(t, answers)
}

func testDeleteCascade(t *testing.T, s storage.Store) {
	ctx := context.Background()

	ev := &models.Event{TableID: "sheet-4", Name: "Gone"}
	require.NoError(t, s.CreateEvent(ctx, ev))
	require.NoError(t, s.Upsert(ctx, &models.Registration{EventID: ev.ID, Row: 2}))
	require.NoError(t, s.SetMailText(ctx, models.MailText{EventID: ev.ID, Type: models.MailVerify, Body: "x"}))
	q := &models.Question{EventID: ev.ID, Name: "Tričko", Type: models.QuestionOpen}
	require.NoError(t, s.AddQuestion(ctx, q))
	require.NoError(t, s.SetAnswer(ctx, models.Answer{EventID: ev.ID, QuestionID: q.ID, Email: "a@x.com", Value: "L"}))

	require.NoError(t, s.DeleteEvent(ctx, ev.ID))

	regs, err := s.ListRegistrations(ctx, ev.ID)
	require.NoError(t, err)
	assert.Empty(t, regs)
	_, err = s.GetMailText(ctx, ev.ID, models.MailVerify)
	assert.True(t, errors.Is(err, storage.ErrNotFound))
	qs, err := s.ListQuestions(ctx, ev.ID)
	require.NoError(t, err)
	assert.Empty(t, qs)
	answers, err := s.ListAnswers(ctx, ev.ID, "")
	require.NoError(t, err)
	assert.Empty(t, answers)
	assert.True(t, errors.Is(s.DeleteEvent(ctx, ev.ID), storage.ErrNotFound))
}
