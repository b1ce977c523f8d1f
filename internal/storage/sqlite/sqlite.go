// Package sqlite implements storage.Store on SQLite.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/mattn/go-sqlite3"

	"eventreg/internal/models"
	"eventreg/internal/storage"
)

type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database file and its tables.
func Open(path string) (*Store, error) {
	dsn := path + "?_foreign_keys=on&_busy_timeout=5000"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, err
	}
	// one writer; keeps :memory: databases on a single connection too
	db.SetMaxOpenConns(1)
	s := &Store{db: db}
	if err := s.CreateTables(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

// CreateTables creates the event, registration, mail text, question and answer tables.
func (s *Store) CreateTables(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			table_id TEXT NOT NULL UNIQUE,
			name TEXT NOT NULL,
			sheet_name TEXT NOT NULL DEFAULT '',
			header TEXT NOT NULL DEFAULT '[]',
			header_drift INTEGER NOT NULL DEFAULT 0,
			skip_rows INTEGER NOT NULL DEFAULT 0,
			from_mail TEXT NOT NULL DEFAULT '',
			verified_url TEXT NOT NULL DEFAULT '',
			already_verified_url TEXT NOT NULL DEFAULT '',
			invalid_token_url TEXT NOT NULL DEFAULT ''
		);`,
		`CREATE TABLE IF NOT EXISTS registrations (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			event_id INTEGER NOT NULL REFERENCES events(id) ON DELETE CASCADE,
			row INTEGER NOT NULL,
			email TEXT NOT NULL DEFAULT '',
			data TEXT NOT NULL DEFAULT '{}',
			confirmed INTEGER NOT NULL DEFAULT 0,
			verified INTEGER NOT NULL DEFAULT 0
		);`,
		`CREATE INDEX IF NOT EXISTS idx_registrations_event_row ON registrations(event_id, row);`,
		`CREATE INDEX IF NOT EXISTS idx_registrations_event_email ON registrations(event_id, email);`,
		`CREATE TABLE IF NOT EXISTS mail_texts (
			event_id INTEGER NOT NULL REFERENCES events(id) ON DELETE CASCADE,
			mail_type TEXT NOT NULL,
			subject TEXT NOT NULL DEFAULT '',
			body TEXT NOT NULL DEFAULT '',
			PRIMARY KEY (event_id, mail_type)
		);`,
		`CREATE TABLE IF NOT EXISTS questions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			event_id INTEGER NOT NULL REFERENCES events(id) ON DELETE CASCADE,
			name TEXT NOT NULL,
			type TEXT NOT NULL,
			choices TEXT NOT NULL DEFAULT '[]',
			skip_field TEXT NOT NULL DEFAULT '',
			skip_value TEXT NOT NULL DEFAULT ''
		);`,
		`CREATE TABLE IF NOT EXISTS answers (
			event_id INTEGER NOT NULL REFERENCES events(id) ON DELETE CASCADE,
			question_id INTEGER NOT NULL REFERENCES questions(id) ON DELETE CASCADE,
			email TEXT NOT NULL,
			value TEXT NOT NULL DEFAULT '',
			PRIMARY KEY (question_id, email)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_answers_event_email ON answers(event_id, email);`,
	}
	for _, q := range stmts {
		if _, err := s.db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("create tables: %w", err)
		}
	}
	return nil
}

// ---------- Events ----------

const eventColumns = `id, table_id, name, sheet_name, header, header_drift, skip_rows, from_mail,
	verified_url, already_verified_url, invalid_token_url`

func (s *Store) CreateEvent(ctx context.Context, ev *models.Event) error {
	header, err := json.Marshal(nonNil(ev.Header))
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `INSERT INTO events (table_id, name, sheet_name, header, header_drift,
		skip_rows, from_mail, verified_url, already_verified_url, invalid_token_url)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.TableID, ev.Name, ev.SheetName, string(header), ev.HeaderDrift, ev.SkipRows, ev.FromMail,
		ev.VerifiedURL, ev.AlreadyVerifiedURL, ev.InvalidTokenURL)
	if err != nil {
		var se sqlite3.Error
		if errors.As(err, &se) && se.ExtendedCode == sqlite3.ErrConstraintUnique {
			return storage.ErrDuplicateTable
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	ev.ID = id
	return nil
}

func (s *Store) GetEvent(ctx context.Context, id int64) (*models.Event, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+eventColumns+" FROM events WHERE id = ?", id)
	return scanEvent(row)
}

func (s *Store) FindEvent(ctx context.Context, ref string) (*models.Event, error) {
	if id, err := strconv.ParseInt(ref, 10, 64); err == nil {
		ev, err := s.GetEvent(ctx, id)
		if err == nil || !errors.Is(err, storage.ErrNotFound) {
			return ev, err
		}
	}
	row := s.db.QueryRowContext(ctx, "SELECT "+eventColumns+" FROM events WHERE name = ? ORDER BY id LIMIT 1", ref)
	return scanEvent(row)
}

func (s *Store) ListEvents(ctx context.Context) ([]models.Event, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+eventColumns+" FROM events ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []models.Event{}
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *ev)
	}
	return out, rows.Err()
}

func (s *Store) UpdateEventHeader(ctx context.Context, id int64, header []string, drift bool) error {
	data, err := json.Marshal(nonNil(header))
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, "UPDATE events SET header = ?, header_drift = ? WHERE id = ?", string(data), drift, id)
	if err != nil {
		return err
	}
	return expectAffected(res)
}

func (s *Store) DeleteEvent(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM events WHERE id = ?", id)
	if err != nil {
		return err
	}
	return expectAffected(res)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEvent(row scanner) (*models.Event, error) {
	var ev models.Event
	var header string
	err := row.Scan(&ev.ID, &ev.TableID, &ev.Name, &ev.SheetName, &header, &ev.HeaderDrift, &ev.SkipRows,
		&ev.FromMail, &ev.VerifiedURL, &ev.AlreadyVerifiedURL, &ev.InvalidTokenURL)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, err
	}
	if err := json.Unmarshal([]byte(header), &ev.Header); err != nil {
		return nil, fmt.Errorf("event %d header: %w", ev.ID, err)
	}
	return &ev, nil
}

// ---------- Registrations ----------

const regColumns = "id, event_id, row, data, confirmed, verified"

func (s *Store) ListRegistrations(ctx context.Context, eventID int64) ([]models.Registration, error) {
	return s.queryRegs(ctx, "SELECT "+regColumns+" FROM registrations WHERE event_id = ? ORDER BY row, id", eventID)
}

func (s *Store) FindByEventAndRow(ctx context.Context, eventID int64, row int) (*models.Registration, error) {
	regs, err := s.queryRegs(ctx, "SELECT "+regColumns+" FROM registrations WHERE event_id = ? AND row = ? ORDER BY id LIMIT 1", eventID, row)
	if err != nil {
		return nil, err
	}
	if len(regs) == 0 {
		return nil, storage.ErrNotFound
	}
	return &regs[0], nil
}

func (s *Store) FindByEventAndEmail(ctx context.Context, eventID int64, email string) ([]models.Registration, error) {
	return s.queryRegs(ctx, "SELECT "+regColumns+" FROM registrations WHERE event_id = ? AND email = ? ORDER BY row, id",
		eventID, models.NormalizeEmail(email))
}

func (s *Store) DeleteAllForEvent(ctx context.Context, eventID int64) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM registrations WHERE event_id = ?", eventID)
	return err
}

func (s *Store) Upsert(ctx context.Context, reg *models.Registration) error {
	data, err := json.Marshal(reg.Fields.Map())
	if err != nil {
		return err
	}
	email := models.NormalizeEmail(reg.Fields.Email)
	if reg.ID == 0 {
		res, err := s.db.ExecContext(ctx, `INSERT INTO registrations (event_id, row, email, data, confirmed, verified)
			VALUES (?, ?, ?, ?, ?, ?)`, reg.EventID, reg.Row, email, string(data), reg.Confirmed, reg.Verified)
		if err != nil {
			return err
		}
		id, err := res.LastInsertId()
		if err != nil {
			return err
		}
		reg.ID = id
		return nil
	}
	res, err := s.db.ExecContext(ctx, `UPDATE registrations SET event_id = ?, row = ?, email = ?, data = ?,
		confirmed = ?, verified = ? WHERE id = ?`,
		reg.EventID, reg.Row, email, string(data), reg.Confirmed, reg.Verified, reg.ID)
	if err != nil {
		return err
	}
	return expectAffected(res)
}

func (s *Store) queryRegs(ctx context.Context, query string, args ...any) ([]models.Registration, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []models.Registration{}
	for rows.Next() {
		var r models.Registration
		var data string
		if err := rows.Scan(&r.ID, &r.EventID, &r.Row, &data, &r.Confirmed, &r.Verified); err != nil {
			return nil, err
		}
		m := map[string]string{}
		if err := json.Unmarshal([]byte(data), &m); err != nil {
			return nil, fmt.Errorf("registration %d data: %w", r.ID, err)
		}
		r.Fields = models.FieldsFromMap(m)
		out = append(out, r)
	}
	return out, rows.Err()
}

// ---------- Mail texts ----------

func (s *Store) SetMailText(ctx context.Context, mt models.MailText) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO mail_texts (event_id, mail_type, subject, body) VALUES (?, ?, ?, ?)
		ON CONFLICT(event_id, mail_type) DO UPDATE SET subject = excluded.subject, body = excluded.body`,
		mt.EventID, mt.Type, mt.Subject, mt.Body)
	return foreignKeyNotFound(err)
}

func (s *Store) GetMailText(ctx context.Context, eventID int64, mailType string) (*models.MailText, error) {
	mt := models.MailText{EventID: eventID, Type: mailType}
	err := s.db.QueryRowContext(ctx, "SELECT subject, body FROM mail_texts WHERE event_id = ? AND mail_type = ?",
		eventID, strings.TrimSpace(mailType)).Scan(&mt.Subject, &mt.Body)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, err
	}
	return &mt, nil
}

// ---------- Questions ----------

func (s *Store) AddQuestion(ctx context.Context, q *models.Question) error {
	choices, err := json.Marshal(nonNil(q.Choices))
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `INSERT INTO questions (event_id, name, type, choices, skip_field, skip_value)
		VALUES (?, ?, ?, ?, ?, ?)`, q.EventID, q.Name, q.Type, string(choices), q.SkipField, q.SkipValue)
	if err != nil {
		return foreignKeyNotFound(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	q.ID = id
	return nil
}

func (s *Store) ListQuestions(ctx context.Context, eventID int64) ([]models.Question, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, event_id, name, type, choices, skip_field, skip_value
		FROM questions WHERE event_id = ? ORDER BY id`, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []models.Question{}
	for rows.Next() {
		var q models.Question
		var choices string
		if err := rows.Scan(&q.ID, &q.EventID, &q.Name, &q.Type, &choices, &q.SkipField, &q.SkipValue); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(choices), &q.Choices); err != nil {
			return nil, fmt.Errorf("question %d choices: %w", q.ID, err)
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

func (s *Store) DeleteQuestion(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM questions WHERE id = ?", id)
	if err != nil {
		return err
	}
	return expectAffected(res)
}

func (s *Store) SetAnswer(ctx context.Context, a models.Answer) error {
	var eventID int64
	err := s.db.QueryRowContext(ctx, "SELECT event_id FROM questions WHERE id = ?", a.QuestionID).Scan(&eventID)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && eventID != a.EventID) {
		return storage.ErrNotFound
	}
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO answers (event_id, question_id, email, value) VALUES (?, ?, ?, ?)
		ON CONFLICT(question_id, email) DO UPDATE SET value = excluded.value`,
		a.EventID, a.QuestionID, models.NormalizeEmail(a.Email), a.Value)
	return foreignKeyNotFound(err)
}

func (s *Store) ListAnswers(ctx context.Context, eventID int64, email string) ([]models.Answer, error) {
	query := "SELECT event_id, question_id, email, value FROM answers WHERE event_id = ?"
	args := []any{eventID}
	if email != "" {
		query += " AND email = ?"
		args = append(args, models.NormalizeEmail(email))
	}
	rows, err := s.db.QueryContext(ctx, query+" ORDER BY email, question_id", args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []models.Answer{}
	for rows.Next() {
		var a models.Answer
		if err := rows.Scan(&a.EventID, &a.QuestionID, &a.Email, &a.Value); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// ---------- helpers ----------

func foreignKeyNotFound(err error) error {
	var se sqlite3.Error
	if errors.As(err, &se) && se.ExtendedCode == sqlite3.ErrConstraintForeignKey {
		return storage.ErrNotFound
	}
	return err
}

func expectAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
