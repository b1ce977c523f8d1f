package tgbot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"eventreg/internal/config"
	"eventreg/internal/models"
	"eventreg/internal/sheetsync"
	"eventreg/internal/storage"
	"eventreg/internal/verify"
)

type Store interface {
	FindEvent(ctx context.Context, ref string) (*models.Event, error)
	ListEvents(ctx context.Context) ([]models.Event, error)
	ListRegistrations(ctx context.Context, eventID int64) ([]models.Registration, error)
}

type Syncer interface {
	Pull(ctx context.Context, ev *models.Event) (sheetsync.PullReport, error)
	Push(ctx context.Context, ev *models.Event) (sheetsync.PushReport, error)
}

type Verifier interface {
	ForceVerify(ctx context.Context, ev *models.Event, email string) (verify.Outcome, error)
}

type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// App is the operator bot. Only chats listed in ADMIN_TG_IDS may run commands; the
// same chats receive notifications from the sync engine.
type App struct {
	cfg config.Config
	bot *tgbotapi.BotAPI
	out sender

	store    Store
	syncer   Syncer
	verifier Verifier
	log      *zap.Logger
}

func New(cfg config.Config, store Store, syncer Syncer, verifier Verifier, log *zap.Logger) (*App, error) {
	b, err := tgbotapi.NewBotAPI(cfg.TelegramToken)
	if err != nil {
		return nil, err
	}
	b.Debug = false
	a := newApp(cfg, b, store, syncer, verifier, log)
	a.bot = b
	return a, nil
}

func newApp(cfg config.Config, out sender, store Store, syncer Syncer, verifier Verifier, log *zap.Logger) *App {
	if log == nil {
		log = zap.NewNop()
	}
	return &App{
		cfg:      cfg,
		out:      out,
		store:    store,
		syncer:   syncer,
		verifier: verifier,
		log:      log,
	}
}

// SetSyncer wires the sync engine after construction; the engine itself notifies
// through the App.
func (a *App) SetSyncer(s Syncer) {
	a.syncer = s
}

func (a *App) SetVerifier(v Verifier) {
	a.verifier = v
}

func (a *App) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := a.bot.GetUpdatesChan(u)
	defer a.bot.StopReceivingUpdates()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case upd := <-updates:
			if upd.Message == nil {
				continue
			}
			if err := a.handleMessage(ctx, upd.Message); err != nil {
				a.log.Error("Failed to handle message",
					zap.Error(err),
					zap.Int64("chat_id", upd.Message.Chat.ID))
			}
		}
	}
}

func (a *App) SendText(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	_, err := a.out.Send(msg)
	return err
}

// Notify sends text to every admin chat.
func (a *App) Notify(ctx context.Context, text string) error {
	var errs []error
	for id := range a.cfg.AdminTGIDs {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := a.SendText(id, text); err != nil {
			errs = append(errs, fmt.Errorf("notify %d: %w", id, err))
		}
	}
	return errors.Join(errs...)
}

func (a *App) isAdmin(tgID int64) bool {
	return a.cfg.AdminTGIDs[tgID]
}

func (a *App) handleMessage(ctx context.Context, m *tgbotapi.Message) error {
	if m.From == nil {
		return nil
	}
	cmd, args := parseCommand(m.Text)
	if cmd == "" {
		return nil
	}
	if !a.isAdmin(m.From.ID) {
		return a.SendText(m.Chat.ID, "Access denied.")
	}
	return a.SendText(m.Chat.ID, a.reply(ctx, cmd, args))
}

const help = `Commands:
/events - list events
/pull <event> - import registrations from the sheet
/push <event> - write verification status to the sheet
/stats <event> - registration counts
/confirm <event> <email> - mark a registration verified`

func (a *App) reply(ctx context.Context, cmd string, args []string) string {
	switch cmd {
	case "start", "help":
		return help
	case "events":
		return a.listEvents(ctx)
	case "pull", "push", "stats", "confirm":
	default:
		return "Unknown command.\n" + help
	}

	if len(args) == 0 {
		return "Usage: /" + cmd + " <event>"
	}
	ev, err := a.store.FindEvent(ctx, args[0])
	if errors.Is(err, storage.ErrNotFound) {
		return "Event not found: " + args[0]
	}
	if err != nil {
		return "Error: " + err.Error()
	}

	if (cmd == "pull" || cmd == "push") && a.syncer == nil {
		return "Spreadsheet access is not configured."
	}
	if cmd == "confirm" && a.verifier == nil {
		return "Verification is not configured."
	}

	switch cmd {
	case "stats":
		return a.stats(ctx, ev)
	case "pull":
		rep, err := a.syncer.Pull(ctx, ev)
		if err != nil {
			return fmt.Sprintf("Pull of %s failed after %d rows: %v", ev.Name, rep.Imported, err)
		}
		text := fmt.Sprintf("Pulled %s: %d imported, %d blank, %d carried over.", ev.Name, rep.Imported, rep.Skipped, rep.Carried)
		if rep.Drift {
			text += "\nThe sheet header differs from the stored one."
		}
		return text
	case "push":
		rep, err := a.syncer.Push(ctx, ev)
		if err != nil {
			return fmt.Sprintf("Push of %s failed: %v", ev.Name, err)
		}
		return fmt.Sprintf("Pushed %s: %d written, %d failed.", ev.Name, rep.Written, rep.Failed)
	default:
		if len(args) < 2 {
			return "Usage: /confirm <event> <email>"
		}
		out, err := a.verifier.ForceVerify(ctx, ev, args[1])
		if errors.Is(err, storage.ErrNotFound) {
			return "No registration for " + args[1]
		}
		if err != nil {
			return "Error: " + err.Error()
		}
		if out == verify.OutcomeAlreadyVerified {
			return args[1] + " was already verified."
		}
		return args[1] + " verified."
	}
}

func (a *App) listEvents(ctx context.Context) string {
	events, err := a.store.ListEvents(ctx)
	if err != nil {
		return "Error: " + err.Error()
	}
	if len(events) == 0 {
		return "No events yet."
	}
	var b strings.Builder
	for _, ev := range events {
		fmt.Fprintf(&b, "%d. %s (%s)", ev.ID, ev.Name, ev.TableID)
		if ev.HeaderDrift {
			b.WriteString(" [header drift]")
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func (a *App) stats(ctx context.Context, ev *models.Event) string {
	regs, err := a.store.ListRegistrations(ctx, ev.ID)
	if err != nil {
		return "Error: " + err.Error()
	}
	confirmed, verified := 0, 0
	for _, r := range regs {
		if r.Confirmed {
			confirmed++
		}
		if r.Verified {
			verified++
		}
	}
	return fmt.Sprintf("%s: %d registrations, %d confirmed, %d verified.", ev.Name, len(regs), confirmed, verified)
}

// parseCommand splits "/cmd@bot a b" into "cmd" and its arguments. Text that is not
// a command yields an empty name.
func parseCommand(text string) (string, []string) {
	fields := strings.Fields(text)
	if len(fields) == 0 || !strings.HasPrefix(fields[0], "/") {
		return "", nil
	}
	cmd := strings.TrimPrefix(fields[0], "/")
	if i := strings.IndexByte(cmd, '@'); i >= 0 {
		cmd = cmd[:i]
	}
	return strings.ToLower(cmd), fields[1:]
}
