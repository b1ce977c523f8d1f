package verify

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"eventreg/internal/metrics"
	"eventreg/internal/models"
	"eventreg/internal/storage"
)

type Outcome int

const (
	OutcomeInvalid Outcome = iota
	OutcomeVerified
	OutcomeAlreadyVerified
	// OutcomeAnswersPending: the token is valid but questions are unanswered; nothing changed.
	OutcomeAnswersPending
)

// ErrInvalidToken is returned by the questionnaire operations for a bad link.
var ErrInvalidToken = errors.New("invalid verification token")

func (o Outcome) String() string {
	switch o {
	case OutcomeVerified:
		return "verified"
	case OutcomeAlreadyVerified:
		return "already_verified"
	case OutcomeAnswersPending:
		return "answers_pending"
	default:
		return "invalid"
	}
}

type Store interface {
	GetEvent(ctx context.Context, id int64) (*models.Event, error)
	FindByEventAndEmail(ctx context.Context, eventID int64, email string) ([]models.Registration, error)
	Upsert(ctx context.Context, reg *models.Registration) error
	ListQuestions(ctx context.Context, eventID int64) ([]models.Question, error)
	ListAnswers(ctx context.Context, eventID int64, email string) ([]models.Answer, error)
	SetAnswer(ctx context.Context, a models.Answer) error
}

// Pusher mirrors a changed registration into the spreadsheet.
type Pusher interface {
	PushOne(ctx context.Context, ev *models.Event, reg models.Registration) error
}

type Service struct {
	store   Store
	secret  string
	baseURL string
	pusher  Pusher
	metrics *metrics.Metrics
	log     *zap.Logger
}

// NewService builds the verification service. pusher may be nil to leave the sheet
// alone until the next push.
func NewService(store Store, secret, baseURL string, pusher Pusher, m *metrics.Metrics, log *zap.Logger) *Service {
	if m == nil {
		m = metrics.New(nil)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		store:   store,
		secret:  secret,
		baseURL: strings.TrimRight(baseURL, "/"),
		pusher:  pusher,
		metrics: m,
		log:     log,
	}
}

// Verify checks token for email at event eventID and marks the matching registrations
// verified. Invalid tokens never mutate anything, whatever the current state. While
// questions of the event are unanswered the outcome is OutcomeAnswersPending and
// nothing changes. Unknown events return storage.ErrNotFound.
func (s *Service) Verify(ctx context.Context, eventID int64, email, token string) (*models.Event, Outcome, error) {
	ev, err := s.store.GetEvent(ctx, eventID)
	if err != nil {
		return nil, OutcomeInvalid, err
	}
	if !IsValid(token, s.secret, Identity(ev.TableID, email)) {
		s.metrics.Verifications.WithLabelValues(OutcomeInvalid.String()).Inc()
		s.log.Info("Invalid verification token",
			zap.Int64("event_id", eventID),
			zap.String("email", email))
		return ev, OutcomeInvalid, nil
	}
	qn, err := s.load(ctx, ev, email)
	if err != nil {
		return ev, OutcomeInvalid, err
	}
	if qn != nil && len(qn.Unanswered()) > 0 {
		s.metrics.Verifications.WithLabelValues(OutcomeAnswersPending.String()).Inc()
		return ev, OutcomeAnswersPending, nil
	}
	out, err := s.markVerified(ctx, ev, email)
	if err != nil {
		return ev, OutcomeInvalid, err
	}
	s.metrics.Verifications.WithLabelValues(out.String()).Inc()
	return ev, out, nil
}

// ForceVerify marks a registration verified without a token. It is an operator
// override and must only be reachable from trusted entry points (CLI, admin bot).
func (s *Service) ForceVerify(ctx context.Context, ev *models.Event, email string) (Outcome, error) {
	out, err := s.markVerified(ctx, ev, email)
	if err != nil {
		return OutcomeInvalid, err
	}
	if out == OutcomeInvalid {
		return out, fmt.Errorf("no registration for %s: %w", email, storage.ErrNotFound)
	}
	s.log.Info("Registration verified by operator",
		zap.Int64("event_id", ev.ID),
		zap.String("email", email))
	return out, nil
}

func (s *Service) markVerified(ctx context.Context, ev *models.Event, email string) (Outcome, error) {
	regs, err := s.store.FindByEventAndEmail(ctx, ev.ID, email)
	if err != nil {
		return OutcomeInvalid, fmt.Errorf("find registration: %w", err)
	}
	if len(regs) == 0 {
		// a valid link whose row has since been removed from the sheet
		return OutcomeInvalid, nil
	}

	changed := 0
	for i := range regs {
		reg := regs[i]
		if reg.Verified {
			continue
		}
		reg.Verified = true
		if err := s.store.Upsert(ctx, &reg); err != nil {
			return OutcomeInvalid, fmt.Errorf("save registration: %w", err)
		}
		changed++
		if s.pusher != nil {
			if err := s.pusher.PushOne(ctx, ev, reg); err != nil {
				s.log.Warn("Failed to mirror verification into the sheet",
					zap.Error(err),
					zap.Int64("event_id", ev.ID),
					zap.Int("row", reg.Row))
			}
		}
	}
	if changed == 0 {
		return OutcomeAlreadyVerified, nil
	}
	s.log.Info("Registration verified",
		zap.Int64("event_id", ev.ID),
		zap.String("email", email),
		zap.Int("registrations", changed))
	return OutcomeVerified, nil
}

// Link is the public verification URL for a registration.
func (s *Service) Link(ev *models.Event, reg models.Registration) string {
	email := strings.TrimSpace(reg.Fields.Email)
	return s.baseURL + "/verify/" + strconv.FormatInt(ev.ID, 10) + "/" + url.PathEscape(email) + "/" +
		Token(s.secret, Identity(ev.TableID, email))
}

// Questionnaire is the set of questions one participant is asked, with the answers
// given so far.
type Questionnaire struct {
	Event        *models.Event
	Registration models.Registration
	Questions    []models.Question // only those applying to Registration
	Answers      map[int64]string  // question id -> answer
}

func (q *Questionnaire) Unanswered() []models.Question {
	var out []models.Question
	for _, question := range q.Questions {
		if strings.TrimSpace(q.Answers[question.ID]) == "" {
			out = append(out, question)
		}
	}
	return out
}

// AnswerErrors maps question ids to the reason their submitted answer was rejected.
type AnswerErrors map[int64]string

func (e AnswerErrors) Error() string {
	ids := make([]int64, 0, len(e))
	for id := range e {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = fmt.Sprintf("question %d: %s", id, e[id])
	}
	return "invalid answers: " + strings.Join(parts, "; ")
}

// Questionnaire returns the questions of the link owner. A bad token or a link
// whose registration is gone returns ErrInvalidToken.
func (s *Service) Questionnaire(ctx context.Context, eventID int64, email, token string) (*Questionnaire, error) {
	ev, err := s.store.GetEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if !IsValid(token, s.secret, Identity(ev.TableID, email)) {
		return nil, ErrInvalidToken
	}
	qn, err := s.load(ctx, ev, email)
	if err != nil {
		return nil, err
	}
	if qn == nil {
		return nil, ErrInvalidToken
	}
	return qn, nil
}

// Answer validates and stores answers keyed by question id. Open questions take any
// non-blank text, close questions the index of a choice. When any applicable question
// is left blank or gets an unknown choice, nothing is stored and the error is an
// AnswerErrors; the returned questionnaire then carries the accepted values for
// redisplay.
func (s *Service) Answer(ctx context.Context, eventID int64, email, token string, values map[int64]string) (*Questionnaire, error) {
	qn, err := s.Questionnaire(ctx, eventID, email, token)
	if err != nil {
		return nil, err
	}

	accepted := make(map[int64]string, len(qn.Questions))
	errs := AnswerErrors{}
	for _, q := range qn.Questions {
		v := strings.TrimSpace(values[q.ID])
		switch {
		case v == "":
			errs[q.ID] = "Odpověď je povinná."
		case q.Type == models.QuestionClosed:
			i, err := strconv.Atoi(v)
			if err != nil || i < 0 || i >= len(q.Choices) {
				errs[q.ID] = "Neplatná volba."
				continue
			}
			accepted[q.ID] = q.Choices[i]
		default:
			accepted[q.ID] = v
		}
	}
	if len(errs) > 0 {
		for id, v := range accepted {
			qn.Answers[id] = v
		}
		return qn, errs
	}

	for id, v := range accepted {
		err := s.store.SetAnswer(ctx, models.Answer{EventID: eventID, QuestionID: id, Email: email, Value: v})
		if err != nil {
			return qn, fmt.Errorf("save answer: %w", err)
		}
		qn.Answers[id] = v
	}
	s.log.Info("Questionnaire answered",
		zap.Int64("event_id", eventID),
		zap.String("email", email),
		zap.Int("answers", len(accepted)))
	return qn, nil
}

// load returns nil when email has no registration at ev.
func (s *Service) load(ctx context.Context, ev *models.Event, email string) (*Questionnaire, error) {
	regs, err := s.store.FindByEventAndEmail(ctx, ev.ID, email)
	if err != nil {
		return nil, fmt.Errorf("find registration: %w", err)
	}
	if len(regs) == 0 {
		return nil, nil
	}
	questions, err := s.store.ListQuestions(ctx, ev.ID)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	qn := &Questionnaire{Event: ev, Registration: regs[0], Answers: map[int64]string{}}
	for _, q := range questions {
		if q.AppliesTo(regs[0]) {
			qn.Questions = append(qn.Questions, q)
		}
	}
	if len(qn.Questions) == 0 {
		return qn, nil
	}
	answers, err := s.store.ListAnswers(ctx, ev.ID, email)
	if err != nil {
		return nil, fmt.Errorf("list answers: %w", err)
	}
	for _, a := range answers {
		qn.Answers[a.QuestionID] = a.Value
	}
	return qn, nil
}

// AnswerLink is the questionnaire URL matching a verification link.
func AnswerLink(baseURL string, eventID int64, email, token string) string {
	return strings.TrimRight(baseURL, "/") + "/answer/" + strconv.FormatInt(eventID, 10) + "/" + url.PathEscape(email) + "/" + token
}
