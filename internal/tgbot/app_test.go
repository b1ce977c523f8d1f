package tgbot

import (
	"context"
	"errors"
	"strconv"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"eventreg/internal/config"
	"eventreg/internal/models"
	"eventreg/internal/sheetsync"
	"eventreg/internal/storage"
	"eventreg/internal/storage/memory"
	"eventreg/internal/verify"
)

type fakeSender struct {
	sent []tgbotapi.MessageConfig
	fail map[int64]bool
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	msg := c.(tgbotapi.MessageConfig)
	if f.fail[msg.ChatID] {
		return tgbotapi.Message{}, errors.New("blocked")
	}
	f.sent = append(f.sent, msg)
	return tgbotapi.Message{}, nil
}

type mockSyncer struct {
	mock.Mock
}

func (m *mockSyncer) Pull(ctx context.Context, ev *models.Event) (sheetsync.PullReport, error) {
	args := m.Called(ctx, ev)
	return args.Get(0).(sheetsync.PullReport), args.Error(1)
}

func (m *mockSyncer) Push(ctx context.Context, ev *models.Event) (sheetsync.PushReport, error) {
	args := m.Called(ctx, ev)
	return args.Get(0).(sheetsync.PushReport), args.Error(1)
}

type mockVerifier struct {
	mock.Mock
}

func (m *mockVerifier) ForceVerify(ctx context.Context, ev *models.Event, email string) (verify.Outcome, error) {
	args := m.Called(ctx, ev, email)
	return args.Get(0).(verify.Outcome), args.Error(1)
}

const admin = int64(42)

func setup(t *testing.T) (*App, *fakeSender, *mockSyncer, *mockVerifier, *models.Event) {
	t.Helper()
	ctx := context.Background()
	store := memory.New()
	ev := &models.Event{TableID: "table-1", Name: "Wikikonference"}
	require.NoError(t, store.CreateEvent(ctx, ev))
	require.NoError(t, store.Upsert(ctx, &models.Registration{EventID: ev.ID, Row: 2, Confirmed: true, Verified: true}))
	require.NoError(t, store.Upsert(ctx, &models.Registration{EventID: ev.ID, Row: 3, Confirmed: true}))
	require.NoError(t, store.Upsert(ctx, &models.Registration{EventID: ev.ID, Row: 4}))

	out := &fakeSender{}
	syncer := new(mockSyncer)
	verifier := new(mockVerifier)
	cfg := config.Config{AdminTGIDs: map[int64]bool{admin: true}}
	return newApp(cfg, out, store, syncer, verifier, nil), out, syncer, verifier, ev
}

func message(from int64, text string) *tgbotapi.Message {
	return &tgbotapi.Message{
		From: &tgbotapi.User{ID: from},
		Chat: &tgbotapi.Chat{ID: from},
		Text: text,
	}
}

func TestParseCommand(t *testing.T) {
	cmd, args := parseCommand("/Confirm@eventreg_bot 1  a@x.com")
	assert.Equal(t, "confirm", cmd)
	assert.Equal(t, []string{"1", "a@x.com"}, args)

	cmd, _ = parseCommand("hello")
	assert.Empty(t, cmd)
	cmd, _ = parseCommand("   ")
	assert.Empty(t, cmd)
}

func TestHandleMessage_NonAdmin(t *testing.T) {
	a, out, syncer, _, _ := setup(t)

	require.NoError(t, a.handleMessage(context.Background(), message(7, "/pull 1")))
	require.Len(t, out.sent, 1)
	assert.Equal(t, "Access denied.", out.sent[0].Text)
	syncer.AssertNotCalled(t, "Pull", mock.Anything, mock.Anything)
}

func TestHandleMessage_IgnoresPlainText(t *testing.T) {
	a, out, _, _, _ := setup(t)
	require.NoError(t, a.handleMessage(context.Background(), message(admin, "hi")))
	assert.Empty(t, out.sent)
}

func TestReply_Pull(t *testing.T) {
	a, _, syncer, _, ev := setup(t)
	syncer.On("Pull", mock.Anything, mock.MatchedBy(func(e *models.Event) bool { return e.ID == ev.ID })).
		Return(sheetsync.PullReport{Imported: 3, Skipped: 1, Carried: 2, Drift: true}, nil).Once()

	text := a.reply(context.Background(), "pull", []string{strconv.FormatInt(ev.ID, 10)})
	assert.Equal(t, "Pulled Wikikonference: 3 imported, 1 blank, 2 carried over.\nThe sheet header differs from the stored one.", text)
	syncer.AssertExpectations(t)
}

func TestReply_PushByName(t *testing.T) {
	a, _, syncer, _, _ := setup(t)
	syncer.On("Push", mock.Anything, mock.Anything).Return(sheetsync.PushReport{Written: 2, Failed: 1}, nil).Once()

	text := a.reply(context.Background(), "push", []string{"Wikikonference"})
	assert.Equal(t, "Pushed Wikikonference: 2 written, 1 failed.", text)
}

func TestReply_Stats(t *testing.T) {
	a, _, _, _, ev := setup(t)
	text := a.reply(context.Background(), "stats", []string{strconv.FormatInt(ev.ID, 10)})
	assert.Equal(t, "Wikikonference: 3 registrations, 2 confirmed, 1 verified.", text)
}

func TestReply_Confirm(t *testing.T) {
	a, _, _, verifier, ev := setup(t)
	verifier.On("ForceVerify", mock.Anything, mock.Anything, "a@x.com").Return(verify.OutcomeVerified, nil).Once()
	verifier.On("ForceVerify", mock.Anything, mock.Anything, "nobody@x.com").Return(verify.OutcomeInvalid, storage.ErrNotFound).Once()
	id := strconv.FormatInt(ev.ID, 10)

	assert.Equal(t, "a@x.com verified.", a.reply(context.Background(), "confirm", []string{id, "a@x.com"}))
	assert.Equal(t, "No registration for nobody@x.com", a.reply(context.Background(), "confirm", []string{id, "nobody@x.com"}))
	assert.Equal(t, "Usage: /confirm <event> <email>", a.reply(context.Background(), "confirm", []string{id}))
	verifier.AssertExpectations(t)
}

func TestReply_UnknownEventAndUsage(t *testing.T) {
	a, _, _, _, _ := setup(t)
	assert.Equal(t, "Event not found: 999", a.reply(context.Background(), "stats", []string{"999"}))
	assert.Equal(t, "Usage: /pull <event>", a.reply(context.Background(), "pull", nil))
	assert.Contains(t, a.reply(context.Background(), "events", nil), "Wikikonference (table-1)")
	assert.Contains(t, a.reply(context.Background(), "frobnicate", nil), "Unknown command.")
}

func TestNotify(t *testing.T) {
	a, out, _, _, _ := setup(t)
	a.cfg.AdminTGIDs[43] = true

	require.NoError(t, a.Notify(context.Background(), "drift"))
	assert.Len(t, out.sent, 2)

	out.sent = nil
	out.fail = map[int64]bool{43: true}
	err := a.Notify(context.Background(), "drift")
	require.Error(t, err)
	assert.Len(t, out.sent, 1)
}
