package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"eventreg/internal/util"
)

type Config struct {
	Env      string
	LogLevel string

	DatabasePath string

	GoogleServiceAccountJSON string

	// SecretKey keys the verification link tokens. Rotating it invalidates every
	// link already sent.
	SecretKey string

	HTTPAddr      string
	BasePublicURL string

	TelegramToken string
	AdminTGIDs    map[int64]bool

	SMTPHost     string
	SMTPPort     int
	SMTPUser     string
	SMTPPassword string
	MailFromName string

	SheetPageSize    int
	SheetLastColumn  string
	StatusVerified   string
	StatusUnverified string
	ColumnMapFile    string
	CarryOverKey     string
	PushOnVerify     bool

	RendererURL        string
	RendererAPIKey     string
	RendererCombineURL string
	BadgeTemplate      string
	BadgeSubtopic      string
	BadgeOptOut        string
}

func FromEnv() (Config, error) {
	var c Config
	c.Env = envOr("APP_ENV", "production")
	c.LogLevel = envOr("LOG_LEVEL", "info")
	c.DatabasePath = envOr("DATABASE_PATH", "eventreg.db")
	c.GoogleServiceAccountJSON = strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON"))
	c.SecretKey = strings.TrimSpace(os.Getenv("SECRET_KEY"))

	c.HTTPAddr = envOr("HTTP_ADDR", ":8080")
	c.BasePublicURL = strings.TrimRight(strings.TrimSpace(os.Getenv("BASE_PUBLIC_URL")), "/")
	if c.BasePublicURL == "" {
		c.BasePublicURL = "http://localhost" + c.HTTPAddr
	}

	c.TelegramToken = strings.TrimSpace(os.Getenv("TELEGRAM_BOT_TOKEN"))
	c.AdminTGIDs = parseAdminIDs(os.Getenv("ADMIN_TG_IDS"))

	c.SMTPHost = strings.TrimSpace(os.Getenv("SMTP_HOST"))
	c.SMTPUser = strings.TrimSpace(os.Getenv("SMTP_USER"))
	c.SMTPPassword = os.Getenv("SMTP_PASSWORD")
	c.MailFromName = strings.TrimSpace(os.Getenv("MAIL_FROM_NAME"))

	var err error
	if c.SMTPPort, err = envInt("SMTP_PORT", 587); err != nil {
		return c, err
	}
	if c.SheetPageSize, err = envInt("SHEET_PAGE_SIZE", 30); err != nil {
		return c, err
	}
	if c.SheetPageSize <= 0 {
		return c, fmt.Errorf("SHEET_PAGE_SIZE must be positive, got %d", c.SheetPageSize)
	}

	c.SheetLastColumn = strings.ToUpper(envOr("SHEET_LAST_COLUMN", "AZ"))
	if strings.Trim(c.SheetLastColumn, "ABCDEFGHIJKLMNOPQRSTUVWXYZ") != "" {
		return c, fmt.Errorf("SHEET_LAST_COLUMN must be a column letter, got %q", c.SheetLastColumn)
	}
	c.StatusVerified = envOr("STATUS_VERIFIED", "Verified")
	c.StatusUnverified = envOr("STATUS_UNVERIFIED", "Unverified")
	c.ColumnMapFile = strings.TrimSpace(os.Getenv("COLUMN_MAP_FILE"))
	c.CarryOverKey = envOr("CARRY_OVER_KEY", "row")
	c.PushOnVerify = util.ParseBool(os.Getenv("PUSH_ON_VERIFY"))

	c.RendererURL = strings.TrimSpace(os.Getenv("RENDERER_URL"))
	c.RendererAPIKey = strings.TrimSpace(os.Getenv("RENDERER_API_KEY"))
	c.RendererCombineURL = strings.TrimSpace(os.Getenv("RENDERER_COMBINE_URL"))
	c.BadgeTemplate = envOr("BADGE_TEMPLATE", "badges.docx")
	c.BadgeSubtopic = envOr("BADGE_SUBTOPIC", "Wikimedia Česká republika")
	c.BadgeOptOut = envOr("BADGE_OPT_OUT", "nepřeji si mít žádnou visačku")

	if c.SecretKey == "" {
		return c, fmt.Errorf("SECRET_KEY is empty")
	}

	return c, nil
}

// RequireSheets reports a missing service account for commands that talk to the spreadsheet.
func (c Config) RequireSheets() error {
	if c.GoogleServiceAccountJSON == "" {
		return fmt.Errorf("GOOGLE_SERVICE_ACCOUNT_JSON is empty")
	}
	return nil
}

func (c Config) RequireSMTP() error {
	if c.SMTPHost == "" {
		return fmt.Errorf("SMTP_HOST is empty")
	}
	return nil
}

func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return v, nil
}

func parseAdminIDs(raw string) map[int64]bool {
	m := map[int64]bool{}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return m
	}
	parts := strings.Split(raw, ",")
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		v, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			continue
		}
		m[v] = true
	}
	return m
}
