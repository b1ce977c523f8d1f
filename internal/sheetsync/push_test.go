package sheetsync

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"eventreg/internal/columns"
	"eventreg/internal/models"
)

func pulledEvent(t *testing.T, sheet *fakeSheet, opts Options) (*Syncer, *models.Event, func(row int, verified bool)) {
	t.Helper()
	s, store, ev := setup(t, sheet, opts)
	_, err := s.Pull(context.Background(), ev)
	require.NoError(t, err)
	mark := func(row int, verified bool) {
		reg, err := store.FindByEventAndRow(context.Background(), ev.ID, row)
		require.NoError(t, err)
		reg.Verified = verified
		require.NoError(t, store.Upsert(context.Background(), reg))
	}
	return s, ev, mark
}

func statusSheet() *fakeSheet {
	return &fakeSheet{rows: [][]string{
		{"Timestamp", "Email", "Name", "Verification status"},
		{"t1", "a@x.com", "Alice"},
		{"t2", "b@x.com", "Bob"},
	}}
}

func TestPush_WritesStatusCells(t *testing.T) {
	sheet := statusSheet()
	s, ev, mark := pulledEvent(t, sheet, Options{StatusVerified: "Ověřeno", StatusUnverified: "Neověřeno"})
	mark(3, true)

	report, err := s.Push(context.Background(), ev)
	require.NoError(t, err)
	assert.Equal(t, PushReport{Written: 2}, report)
	assert.Equal(t, []write{
		{Range: "'Účastníci'!D2", Value: "Neověřeno"},
		{Range: "'Účastníci'!D3", Value: "Ověřeno"},
	}, sheet.writes)
}

func TestPush_Idempotent(t *testing.T) {
	sheet := statusSheet()
	s, ev, mark := pulledEvent(t, sheet, Options{})
	mark(2, true)

	_, err := s.Push(context.Background(), ev)
	require.NoError(t, err)
	first := append([]write(nil), sheet.writes...)
	sheet.writes = nil

	_, err = s.Push(context.Background(), ev)
	require.NoError(t, err)
	assert.Equal(t, first, sheet.writes)
}

func TestPush_MissingStatusColumn(t *testing.T) {
	sheet := &fakeSheet{rows: [][]string{
		{"Email", "Name"},
		{"a@x.com", "Alice"},
	}}
	s, ev, _ := pulledEvent(t, sheet, Options{})

	_, err := s.Push(context.Background(), ev)
	require.Error(t, err)
	assert.True(t, errors.Is(err, columns.ErrMapping))
	assert.Empty(t, sheet.writes)
}

func TestPush_UsesStoredHeader(t *testing.T) {
	sheet := statusSheet()
	s, ev, _ := pulledEvent(t, sheet, Options{})

	// the sheet gains a column in front; without accepting the new header the
	// stored positions are used
	sheet.rows = [][]string{
		{"Poznámka", "Timestamp", "Email", "Name", "Verification status"},
		{"", "t1", "a@x.com", "Alice"},
	}
	sheet.gets = nil
	_, err := s.Push(context.Background(), ev)
	require.NoError(t, err)
	assert.Empty(t, sheet.gets, "push must not read the sheet")
	require.NotEmpty(t, sheet.writes)
	assert.Equal(t, "'Účastníci'!D2", sheet.writes[0].Range)
}

func TestPush_ContinuesAfterFailedWrite(t *testing.T) {
	sheet := statusSheet()
	notifier := new(mockNotifier)
	notifier.On("Notify", mock.Anything, mock.AnythingOfType("string")).Return(nil).Once()
	s, ev, _ := pulledEvent(t, sheet, Options{Notifier: notifier})
	sheet.failPut = map[string]bool{"'Účastníci'!D2": true}

	report, err := s.Push(context.Background(), ev)
	require.NoError(t, err)
	assert.Equal(t, PushReport{Written: 1, Failed: 1}, report)
	require.Len(t, sheet.writes, 1)
	assert.Equal(t, "'Účastníci'!D3", sheet.writes[0].Range)
	notifier.AssertExpectations(t)
}

func TestPushOne(t *testing.T) {
	sheet := statusSheet()
	s, ev, _ := pulledEvent(t, sheet, Options{})

	err := s.PushOne(context.Background(), ev, models.Registration{Row: 3, Verified: true})
	require.NoError(t, err)
	assert.Equal(t, []write{{Range: "'Účastníci'!D3", Value: "Verified"}}, sheet.writes)

	sheet.failPut = map[string]bool{"'Účastníci'!D2": true}
	err = s.PushOne(context.Background(), ev, models.Registration{Row: 2})
	assert.True(t, errors.Is(err, ErrSourceUnavailable))
}
