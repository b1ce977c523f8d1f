// Package memory is an in-memory storage.Store used by tests and dry runs.
package memory

import (
	"context"
	"sort"
	"strconv"
	"sync"

	"eventreg/internal/models"
	"eventreg/internal/storage"
)

type Store struct {
	mu        sync.Mutex
	nextEvent int64
	nextReg   int64
	nextQ     int64
	events    map[int64]models.Event
	regs      map[int64]models.Registration
	texts     map[string]models.MailText
	questions map[int64]models.Question
	answers   map[answerKey]models.Answer
}

type answerKey struct {
	question int64
	email    string
}

func New() *Store {
	return &Store{
		events:    map[int64]models.Event{},
		regs:      map[int64]models.Registration{},
		texts:     map[string]models.MailText{},
		questions: map[int64]models.Question{},
		answers:   map[answerKey]models.Answer{},
	}
}

func (s *Store) Close() error { return nil }

func (s *Store) CreateEvent(ctx context.Context, ev *models.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.events {
		if e.TableID == ev.TableID {
			return storage.ErrDuplicateTable
		}
	}
	s.nextEvent++
	ev.ID = s.nextEvent
	s.events[ev.ID] = cloneEvent(*ev)
	return nil
}

func (s *Store) GetEvent(ctx context.Context, id int64) (*models.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ev, ok := s.events[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	out := cloneEvent(ev)
	return &out, nil
}

func (s *Store) FindEvent(ctx context.Context, ref string) (*models.Event, error) {
	if id, err := strconv.ParseInt(ref, 10, 64); err == nil {
		if ev, err := s.GetEvent(ctx, id); err == nil {
			return ev, nil
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ev := range s.sortedEvents() {
		if ev.Name == ref {
			out := cloneEvent(ev)
			return &out, nil
		}
	}
	return nil, storage.ErrNotFound
}

func (s *Store) ListEvents(ctx context.Context) ([]models.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sortedEvents(), nil
}

func (s *Store) sortedEvents() []models.Event {
	out := make([]models.Event, 0, len(s.events))
	for _, ev := range s.events {
		out = append(out, cloneEvent(ev))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *Store) UpdateEventHeader(ctx context.Context, id int64, header []string, drift bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ev, ok := s.events[id]
	if !ok {
		return storage.ErrNotFound
	}
	ev.Header = append([]string(nil), header...)
	ev.HeaderDrift = drift
	s.events[id] = ev
	return nil
}

func (s *Store) DeleteEvent(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.events[id]; !ok {
		return storage.ErrNotFound
	}
	delete(s.events, id)
	for rid, r := range s.regs {
		if r.EventID == id {
			delete(s.regs, rid)
		}
	}
	for k, mt := range s.texts {
		if mt.EventID == id {
			delete(s.texts, k)
		}
	}
	for qid, q := range s.questions {
		if q.EventID == id {
			delete(s.questions, qid)
		}
	}
	for k, a := range s.answers {
		if a.EventID == id {
			delete(s.answers, k)
		}
	}
	return nil
}

func (s *Store) ListRegistrations(ctx context.Context, eventID int64) ([]models.Registration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filter(func(r models.Registration) bool { return r.EventID == eventID }), nil
}

func (s *Store) FindByEventAndRow(ctx context.Context, eventID int64, row int) (*models.Registration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	regs := s.filter(func(r models.Registration) bool { return r.EventID == eventID && r.Row == row })
	if len(regs) == 0 {
		return nil, storage.ErrNotFound
	}
	return &regs[0], nil
}

func (s *Store) FindByEventAndEmail(ctx context.Context, eventID int64, email string) ([]models.Registration, error) {
	email = models.NormalizeEmail(email)
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filter(func(r models.Registration) bool {
		return r.EventID == eventID && models.NormalizeEmail(r.Fields.Email) == email
	}), nil
}

func (s *Store) DeleteAllForEvent(ctx context.Context, eventID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, r := range s.regs {
		if r.EventID == eventID {
			delete(s.regs, id)
		}
	}
	return nil
}

func (s *Store) Upsert(ctx context.Context, reg *models.Registration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.events[reg.EventID]; !ok {
		return storage.ErrNotFound
	}
	if reg.ID == 0 {
		s.nextReg++
		reg.ID = s.nextReg
	} else if _, ok := s.regs[reg.ID]; !ok {
		return storage.ErrNotFound
	}
	s.regs[reg.ID] = cloneReg(*reg)
	return nil
}

func (s *Store) SetMailText(ctx context.Context, mt models.MailText) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.events[mt.EventID]; !ok {
		return storage.ErrNotFound
	}
	s.texts[textKey(mt.EventID, mt.Type)] = mt
	return nil
}

func (s *Store) GetMailText(ctx context.Context, eventID int64, mailType string) (*models.MailText, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	mt, ok := s.texts[textKey(eventID, mailType)]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &mt, nil
}

func (s *Store) AddQuestion(ctx context.Context, q *models.Question) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.events[q.EventID]; !ok {
		return storage.ErrNotFound
	}
	s.nextQ++
	q.ID = s.nextQ
	s.questions[q.ID] = cloneQuestion(*q)
	return nil
}

func (s *Store) ListQuestions(ctx context.Context, eventID int64) ([]models.Question, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.Question{}
	for _, q := range s.questions {
		if q.EventID == eventID {
			out = append(out, cloneQuestion(q))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) DeleteQuestion(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.questions[id]; !ok {
		return storage.ErrNotFound
	}
	delete(s.questions, id)
	for k := range s.answers {
		if k.question == id {
			delete(s.answers, k)
		}
	}
	return nil
}

func (s *Store) SetAnswer(ctx context.Context, a models.Answer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, ok := s.questions[a.QuestionID]
	if !ok || q.EventID != a.EventID {
		return storage.ErrNotFound
	}
	a.Email = models.NormalizeEmail(a.Email)
	s.answers[answerKey{question: a.QuestionID, email: a.Email}] = a
	return nil
}

func (s *Store) ListAnswers(ctx context.Context, eventID int64, email string) ([]models.Answer, error) {
	email = models.NormalizeEmail(email)
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.Answer{}
	for _, a := range s.answers {
		if a.EventID == eventID && (email == "" || a.Email == email) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Email != out[j].Email {
			return out[i].Email < out[j].Email
		}
		return out[i].QuestionID < out[j].QuestionID
	})
	return out, nil
}

func (s *Store) filter(keep func(models.Registration) bool) []models.Registration {
	out := []models.Registration{}
	for _, r := range s.regs {
		if keep(r) {
			out = append(out, cloneReg(r))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Row != out[j].Row {
			return out[i].Row < out[j].Row
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func textKey(eventID int64, mailType string) string {
	return strconv.FormatInt(eventID, 10) + "/" + mailType
}

func cloneEvent(ev models.Event) models.Event {
	ev.Header = append([]string(nil), ev.Header...)
	return ev
}

func cloneQuestion(q models.Question) models.Question {
	q.Choices = append([]string(nil), q.Choices...)
	return q
}

func cloneReg(r models.Registration) models.Registration {
	if r.Fields.Extra != nil {
		extra := make(map[string]string, len(r.Fields.Extra))
		for k, v := range r.Fields.Extra {
			extra[k] = v
		}
		r.Fields.Extra = extra
	}
	return r
}
