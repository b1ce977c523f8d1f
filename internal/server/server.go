package server

import (
	"context"
	"errors"
	"html"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"eventreg/internal/config"
	"eventreg/internal/models"
	"eventreg/internal/storage"
	"eventreg/internal/verify"
)

type Verifier interface {
	Verify(ctx context.Context, eventID int64, email, token string) (*models.Event, verify.Outcome, error)
	Questionnaire(ctx context.Context, eventID int64, email, token string) (*verify.Questionnaire, error)
	Answer(ctx context.Context, eventID int64, email, token string, values map[int64]string) (*verify.Questionnaire, error)
}

func New(cfg config.Config, v Verifier, gatherer prometheus.Gatherer, log *zap.Logger) *http.Server {
	mux := http.NewServeMux()

	// Verification link from the participant mails
	mux.HandleFunc("GET /verify/{event}/{email}/{token}", func(w http.ResponseWriter, r *http.Request) {
		eventID, err := strconv.ParseInt(r.PathValue("event"), 10, 64)
		if err != nil {
			http.NotFound(w, r)
			return
		}
		ev, out, err := v.Verify(r.Context(), eventID, r.PathValue("email"), r.PathValue("token"))
		if errors.Is(err, storage.ErrNotFound) {
			http.NotFound(w, r)
			return
		}
		if err != nil {
			log.Error("Verification failed",
				zap.Error(err),
				zap.Int64("event_id", eventID))
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		if out == verify.OutcomeAnswersPending {
			http.Redirect(w, r, verify.AnswerLink("", eventID, r.PathValue("email"), r.PathValue("token")), http.StatusFound)
			return
		}
		if target := outcomeURL(ev, out); target != "" {
			http.Redirect(w, r, target, http.StatusFound)
			return
		}
		status := http.StatusOK
		if out == verify.OutcomeInvalid {
			status = http.StatusForbidden
		}
		writePage(w, status, ev.Name, outcomeText[out])
	})

	// Questionnaire the verification link leads to while questions are unanswered
	mux.HandleFunc("GET /answer/{event}/{email}/{token}", func(w http.ResponseWriter, r *http.Request) {
		eventID, err := strconv.ParseInt(r.PathValue("event"), 10, 64)
		if err != nil {
			http.NotFound(w, r)
			return
		}
		qn, err := v.Questionnaire(r.Context(), eventID, r.PathValue("email"), r.PathValue("token"))
		if handleAnswerError(w, r, log, eventID, err) {
			return
		}
		writeQuestionnaire(w, log, http.StatusOK, qn, nil)
	})

	mux.HandleFunc("POST /answer/{event}/{email}/{token}", func(w http.ResponseWriter, r *http.Request) {
		eventID, err := strconv.ParseInt(r.PathValue("event"), 10, 64)
		if err != nil {
			http.NotFound(w, r)
			return
		}
		if err := r.ParseForm(); err != nil {
			http.Error(w, "bad form", http.StatusBadRequest)
			return
		}
		values := map[int64]string{}
		for key := range r.PostForm {
			raw, ok := strings.CutPrefix(key, "q")
			if !ok {
				continue
			}
			if id, err := strconv.ParseInt(raw, 10, 64); err == nil {
				values[id] = r.PostForm.Get(key)
			}
		}

		email, token := r.PathValue("email"), r.PathValue("token")
		qn, err := v.Answer(r.Context(), eventID, email, token, values)
		var invalid verify.AnswerErrors
		if errors.As(err, &invalid) {
			writeQuestionnaire(w, log, http.StatusBadRequest, qn, invalid)
			return
		}
		if handleAnswerError(w, r, log, eventID, err) {
			return
		}
		http.Redirect(w, r, verifyPath(eventID, email, token), http.StatusSeeOther)
	})

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	})

	if gatherer != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	return &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: mux,
	}
}

var outcomeText = map[verify.Outcome]string{
	verify.OutcomeVerified:        "Děkujeme, vaše účast je potvrzena.",
	verify.OutcomeAlreadyVerified: "Vaše účast již byla potvrzena dříve.",
	verify.OutcomeInvalid:         "Odkaz není platný.",
}

func outcomeURL(ev *models.Event, out verify.Outcome) string {
	switch out {
	case verify.OutcomeVerified:
		return ev.VerifiedURL
	case verify.OutcomeAlreadyVerified:
		return ev.AlreadyVerifiedURL
	default:
		return ev.InvalidTokenURL
	}
}

// handleAnswerError writes the response for a failed questionnaire lookup and reports
// whether it did. Bad links go through the verification URL so they end on the
// event's invalid-link page.
func handleAnswerError(w http.ResponseWriter, r *http.Request, log *zap.Logger, eventID int64, err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, storage.ErrNotFound):
		http.NotFound(w, r)
	case errors.Is(err, verify.ErrInvalidToken):
		http.Redirect(w, r, verifyPath(eventID, r.PathValue("email"), r.PathValue("token")), http.StatusFound)
	default:
		log.Error("Questionnaire failed",
			zap.Error(err),
			zap.Int64("event_id", eventID))
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
	return true
}

func verifyPath(eventID int64, email, token string) string {
	return "/verify/" + strconv.FormatInt(eventID, 10) + "/" + url.PathEscape(email) + "/" + token
}

func writePage(w http.ResponseWriter, status int, title, text string) {
	page := `<!doctype html><html><head><meta charset="utf-8"><title>` + html.EscapeString(title) + `</title></head><body>
<h2>` + html.EscapeString(title) + `</h2>
<p>` + html.EscapeString(text) + `</p>
</body></html>`
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(page))
}
