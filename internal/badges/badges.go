// Package badges lays registrations out on printable name badge sheets.
package badges

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"eventreg/internal/models"
)

// PerPage is the number of badge slots on one printed sheet.
const PerPage = 9

// Page is the template data of one sheet: subtopic, event, year and the
// big_name_N / small_name_N slots for N in 1..PerPage.
type Page map[string]string

type Options struct {
	Subtopic string
	// OptOut is the display_on_card answer of participants who want no badge.
	OptOut string
	Year   int
}

// Pages sorts registrations by "last first" name and fills sheets of PerPage slots.
// Registrations with an empty display_on_card answer or the opt-out answer get no badge.
// Unused slots hold a single space so the template renders them blank.
func Pages(ev *models.Event, regs []models.Registration, opts Options) []Page {
	if opts.Year == 0 {
		opts.Year = time.Now().Year()
	}
	printable := make([]models.Registration, 0, len(regs))
	for _, r := range regs {
		d := strings.TrimSpace(r.Fields.DisplayOnCard)
		if d == "" || (opts.OptOut != "" && strings.EqualFold(d, strings.TrimSpace(opts.OptOut))) {
			continue
		}
		printable = append(printable, r)
	}
	sort.SliceStable(printable, func(i, j int) bool {
		return sortKey(printable[i]) < sortKey(printable[j])
	})

	var pages []Page
	for start := 0; start < len(printable); start += PerPage {
		p := Page{
			"subtopic": opts.Subtopic,
			"event":    ev.Name,
			"year":     strconv.Itoa(opts.Year),
		}
		for slot := 1; slot <= PerPage; slot++ {
			big, small := " ", " "
			if i := start + slot - 1; i < len(printable) {
				big, small = BigName(printable[i]), SmallName(printable[i])
			}
			p["big_name_"+strconv.Itoa(slot)] = big
			p["small_name_"+strconv.Itoa(slot)] = small
		}
		pages = append(pages, p)
	}
	return pages
}

func sortKey(r models.Registration) string {
	return strings.ToLower(strings.TrimSpace(r.Fields.LastName) + " " + strings.TrimSpace(r.Fields.FirstName))
}

// BigName is the prominent line of a badge.
func BigName(r models.Registration) string {
	if n := strings.TrimSpace(r.Fields.FirstName); n != "" {
		return n
	}
	return r.FullName()
}

func SmallName(r models.Registration) string {
	if strings.TrimSpace(r.Fields.FirstName) == "" {
		return " "
	}
	if n := strings.TrimSpace(r.Fields.LastName); n != "" {
		return n
	}
	return " "
}

// Renderer turns the data of one page into a printable document.
type Renderer interface {
	Render(ctx context.Context, data Page) ([]byte, error)
}

// Combiner merges rendered pages into one printable document.
type Combiner interface {
	Combine(ctx context.Context, docs [][]byte) ([]byte, error)
}

// ErrCombineUnsupported is returned by a Combiner that has no combine endpoint.
var ErrCombineUnsupported = errors.New("combining documents is not configured")

// CombinedFile is the name of the merged document written next to the pages.
const CombinedFile = "badges.pdf"

type Generator struct {
	renderer Renderer
	opts     Options
	log      *zap.Logger
}

func NewGenerator(r Renderer, opts Options, log *zap.Logger) *Generator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Generator{renderer: r, opts: opts, log: log}
}

// Generate renders every page and writes badges-<n>.pdf files into outDir, returning
// their paths in page order. When the renderer also combines documents, the pages are
// merged into badges.pdf, whose path comes last.
func (g *Generator) Generate(ctx context.Context, ev *models.Event, regs []models.Registration, outDir string) ([]string, error) {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	pages := Pages(ev, regs, g.opts)
	files := make([]string, 0, len(pages)+1)
	docs := make([][]byte, 0, len(pages))
	for i, p := range pages {
		doc, err := g.renderer.Render(ctx, p)
		if err != nil {
			return files, fmt.Errorf("render page %d: %w", i, err)
		}
		path := filepath.Join(outDir, fmt.Sprintf("badges-%d.pdf", i))
		if err := os.WriteFile(path, doc, 0o644); err != nil {
			return files, fmt.Errorf("write %s: %w", path, err)
		}
		files = append(files, path)
		docs = append(docs, doc)
	}

	if c, ok := g.renderer.(Combiner); ok && len(docs) > 0 {
		merged, err := c.Combine(ctx, docs)
		switch {
		case errors.Is(err, ErrCombineUnsupported):
			g.log.Info("Pages left uncombined", zap.Error(err))
		case err != nil:
			return files, fmt.Errorf("combine pages: %w", err)
		default:
			path := filepath.Join(outDir, CombinedFile)
			if err := os.WriteFile(path, merged, 0o644); err != nil {
				return files, fmt.Errorf("write %s: %w", path, err)
			}
			files = append(files, path)
		}
	}

	g.log.Info("Badges generated",
		zap.Int64("event_id", ev.ID),
		zap.Int("pages", len(files)),
		zap.String("dir", outDir))
	return files, nil
}
