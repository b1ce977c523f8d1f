package server

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"eventreg/internal/config"
	"eventreg/internal/metrics"
	"eventreg/internal/models"
	"eventreg/internal/storage/memory"
	"eventreg/internal/verify"
)

const secret = "s3cret"

type fixture struct {
	ts    *httptest.Server
	store *memory.Store
	ev    *models.Event
}

func newFixture(t *testing.T, ev *models.Event) fixture {
	t.Helper()
	ctx := context.Background()
	store := memory.New()
	require.NoError(t, store.CreateEvent(ctx, ev))
	require.NoError(t, store.Upsert(ctx, &models.Registration{EventID: ev.ID, Row: 2, Fields: models.Fields{Email: "a@x.com"}}))

	reg := prometheus.NewRegistry()
	svc := verify.NewService(store, secret, "http://localhost", nil, metrics.New(reg), zap.NewNop())
	srv := New(config.Config{}, svc, reg, zap.NewNop())
	ts := httptest.NewServer(srv.Handler)
	t.Cleanup(ts.Close)
	return fixture{ts: ts, store: store, ev: ev}
}

func noRedirect() *http.Client {
	return &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}}
}

func (f fixture) link(email, token string) string {
	return fmt.Sprintf("%s/verify/%d/%s/%s", f.ts.URL, f.ev.ID, email, token)
}

func (f fixture) answerPath(email, token string) string {
	return fmt.Sprintf("/answer/%d/%s/%s", f.ev.ID, email, token)
}

func TestVerify_Pages(t *testing.T) {
	f := newFixture(t, &models.Event{TableID: "table-1", Name: "Wikikonference"})
	token := verify.Token(secret, verify.Identity("table-1", "a@x.com"))

	resp, err := http.Get(f.link("a@x.com", token))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	regs, err := f.store.FindByEventAndEmail(context.Background(), f.ev.ID, "a@x.com")
	require.NoError(t, err)
	assert.True(t, regs[0].Verified)

	resp, err = http.Get(f.link("a@x.com", token))
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "již byla potvrzena")

	resp, err = http.Get(f.link("a@x.com", "deadbeef"))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestVerify_Redirects(t *testing.T) {
	f := newFixture(t, &models.Event{
		TableID:            "table-1",
		Name:               "Wikikonference",
		VerifiedURL:        "https://example.org/ok",
		AlreadyVerifiedURL: "https://example.org/again",
		InvalidTokenURL:    "https://example.org/bad",
	})
	token := verify.Token(secret, verify.Identity("table-1", "a@x.com"))
	client := noRedirect()

	for _, tc := range []struct {
		token string
		want  string
	}{
		{"bad", "https://example.org/bad"},
		{token, "https://example.org/ok"},
		{token, "https://example.org/again"},
	} {
		resp, err := client.Get(f.link("a@x.com", tc.token))
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusFound, resp.StatusCode)
		assert.Equal(t, tc.want, resp.Header.Get("Location"))
	}
}

func TestVerify_UnknownEvent(t *testing.T) {
	f := newFixture(t, &models.Event{TableID: "table-1"})

	for _, path := range []string{"/verify/999/a@x.com/x", "/verify/abc/a@x.com/x"} {
		resp, err := http.Get(f.ts.URL + path)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode, path)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	f := newFixture(t, &models.Event{TableID: "table-1"})

	resp, err := http.Get(f.ts.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(f.link("a@x.com", "bad"))
	require.NoError(t, err)
	resp.Body.Close()

	resp, err = http.Get(f.ts.URL + "/metrics")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Contains(t, string(body), `eventreg_verifications_total{outcome="invalid"} 1`)
}

func TestAnswer_QuestionnaireBeforeVerification(t *testing.T) {
	f := newFixture(t, &models.Event{TableID: "table-1", Name: "Wikikonference"})
	ctx := context.Background()
	meal := &models.Question{EventID: f.ev.ID, Name: "Volba jídla", Type: models.QuestionClosed, Choices: []string{"maso", "vegetarián"}}
	note := &models.Question{EventID: f.ev.ID, Name: "Poznámka", Type: models.QuestionOpen}
	require.NoError(t, f.store.AddQuestion(ctx, meal))
	require.NoError(t, f.store.AddQuestion(ctx, note))
	token := verify.Token(secret, verify.Identity("table-1", "a@x.com"))
	client := noRedirect()

	resp, err := client.Get(f.link("a@x.com", token))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, f.answerPath("a@x.com", token), resp.Header.Get("Location"))

	resp, err = client.Get(f.ts.URL + f.answerPath("a@x.com", token))
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "Volba jídla")
	assert.Contains(t, string(body), fmt.Sprintf(`name="q%d" value="1"`, meal.ID))
	assert.Contains(t, string(body), fmt.Sprintf(`<input type="text" name="q%d"`, note.ID))

	form := url.Values{}
	form.Set(fmt.Sprintf("q%d", meal.ID), "9")
	form.Set(fmt.Sprintf("q%d", note.ID), "bez lepku")
	resp, err = client.PostForm(f.ts.URL+f.answerPath("a@x.com", token), form)
	require.NoError(t, err)
	body, _ = io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, string(body), "Neplatná volba.")
	assert.Contains(t, string(body), `value="bez lepku"`)

	form.Set(fmt.Sprintf("q%d", meal.ID), "1")
	resp, err = client.PostForm(f.ts.URL+f.answerPath("a@x.com", token), form)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, fmt.Sprintf("/verify/%d/a@x.com/%s", f.ev.ID, token), resp.Header.Get("Location"))

	answers, err := f.store.ListAnswers(ctx, f.ev.ID, "a@x.com")
	require.NoError(t, err)
	require.Len(t, answers, 2)
	assert.Equal(t, "vegetarián", answers[0].Value)

	resp, err = client.Get(f.link("a@x.com", token))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = client.Get(f.ts.URL + f.answerPath("a@x.com", token))
	require.NoError(t, err)
	body, _ = io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Contains(t, string(body), fmt.Sprintf(`name="q%d" value="1" checked`, meal.ID))
}

func TestAnswer_BadLinks(t *testing.T) {
	f := newFixture(t, &models.Event{TableID: "table-1", Name: "Wikikonference"})
	require.NoError(t, f.store.AddQuestion(context.Background(), &models.Question{EventID: f.ev.ID, Name: "Poznámka", Type: models.QuestionOpen}))
	client := noRedirect()

	resp, err := client.Get(f.ts.URL + f.answerPath("a@x.com", "deadbeef"))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, fmt.Sprintf("/verify/%d/a@x.com/deadbeef", f.ev.ID), resp.Header.Get("Location"))

	resp, err = http.PostForm(f.ts.URL+f.answerPath("a@x.com", "deadbeef"), url.Values{"q1": {"x"}})
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode, "ends on the invalid link page")

	for _, path := range []string{"/answer/999/a@x.com/x", "/answer/abc/a@x.com/x"} {
		resp, err := client.Get(f.ts.URL + path)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode, path)
	}

	answers, err := f.store.ListAnswers(context.Background(), f.ev.ID, "")
	require.NoError(t, err)
	assert.Empty(t, answers)
}
