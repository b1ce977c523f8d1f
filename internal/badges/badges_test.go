package badges

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"eventreg/internal/models"
)

func reg(first, last, display string) models.Registration {
	return models.Registration{Fields: models.Fields{FirstName: first, LastName: last, DisplayOnCard: display}}
}

func TestPages_SortsAndFilters(t *testing.T) {
	ev := &models.Event{Name: "Wikikonference"}
	regs := []models.Registration{
		reg("Zoe", "Adams", "jméno"),
		reg("Bob", "Zelený", "jméno"),
		reg("Anna", "Adams", "jméno"),
		reg("Ignored", "Empty", ""),
		reg("Opted", "Out", "nepřeji si mít žádnou visačku"),
	}

	pages := Pages(ev, regs, Options{Subtopic: "Wikimedia ČR", OptOut: "nepřeji si mít žádnou visačku", Year: 2024})
	require.Len(t, pages, 1)
	p := pages[0]
	assert.Equal(t, "Wikimedia ČR", p["subtopic"])
	assert.Equal(t, "Wikikonference", p["event"])
	assert.Equal(t, "2024", p["year"])
	assert.Equal(t, "Anna", p["big_name_1"])
	assert.Equal(t, "Adams", p["small_name_1"])
	assert.Equal(t, "Zoe", p["big_name_2"])
	assert.Equal(t, "Bob", p["big_name_3"])
	for slot := 4; slot <= PerPage; slot++ {
		assert.Equal(t, " ", p[fmt.Sprintf("big_name_%d", slot)])
		assert.Equal(t, " ", p[fmt.Sprintf("small_name_%d", slot)])
	}
}

func TestPages_SplitsIntoSheets(t *testing.T) {
	var regs []models.Registration
	for i := 0; i < 19; i++ {
		regs = append(regs, reg(fmt.Sprintf("P%02d", i), fmt.Sprintf("L%02d", i), "ano"))
	}
	pages := Pages(&models.Event{Name: "E"}, regs, Options{Year: 2024})
	require.Len(t, pages, 3)
	assert.Equal(t, "P09", pages[1]["big_name_1"])
	assert.Equal(t, "P18", pages[2]["big_name_1"])
	assert.Equal(t, " ", pages[2]["big_name_2"])
	assert.Len(t, pages[0], 3+2*PerPage)
}

func TestPages_Empty(t *testing.T) {
	assert.Empty(t, Pages(&models.Event{}, []models.Registration{reg("A", "B", "")}, Options{}))
}

func TestBigAndSmallName(t *testing.T) {
	r := models.Registration{Fields: models.Fields{Name: "Cyril Metoděj"}}
	assert.Equal(t, "Cyril Metoděj", BigName(r))
	assert.Equal(t, " ", SmallName(r))
}

func TestGenerate(t *testing.T) {
	var got []renderRequest
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer key", r.Header.Get("Authorization"))
		var req renderRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		got = append(got, req)
		_, _ = w.Write([]byte("%PDF-" + req.Data["big_name_1"]))
	}))
	defer ts.Close()

	var regs []models.Registration
	for i := 0; i < 10; i++ {
		regs = append(regs, reg(fmt.Sprintf("P%d", i), "L", "ano"))
	}
	g := NewGenerator(&HTTPRenderer{URL: ts.URL, APIKey: "key", Template: "badges.docx"}, Options{Year: 2024}, zap.NewNop())
	dir := filepath.Join(t.TempDir(), "out")

	files, err := g.Generate(context.Background(), &models.Event{Name: "E"}, regs, dir)
	require.NoError(t, err)
	require.Len(t, files, 2)
	require.Len(t, got, 2)
	assert.Equal(t, "badges.docx", got[0].Template)

	b, err := os.ReadFile(filepath.Join(dir, "badges-1.pdf"))
	require.NoError(t, err)
	assert.Equal(t, "%PDF-P9", string(b))
}

func TestGenerate_CombinesPages(t *testing.T) {
	var combined combineRequest
	mux := http.NewServeMux()
	mux.HandleFunc("POST /render", func(w http.ResponseWriter, r *http.Request) {
		var req renderRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		_, _ = w.Write([]byte("page-" + req.Data["big_name_1"]))
	})
	mux.HandleFunc("POST /combine", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&combined))
		_, _ = w.Write([]byte("%PDF-all"))
	})
	ts := httptest.NewServer(mux)
	defer ts.Close()

	var regs []models.Registration
	for i := 0; i < 10; i++ {
		regs = append(regs, reg(fmt.Sprintf("P%d", i), "L", "ano"))
	}
	r := &HTTPRenderer{URL: ts.URL + "/render", CombineURL: ts.URL + "/combine"}
	dir := t.TempDir()

	files, err := NewGenerator(r, Options{Year: 2024}, nil).Generate(context.Background(), &models.Event{Name: "E"}, regs, dir)
	require.NoError(t, err)
	require.Len(t, files, 3)
	assert.Equal(t, filepath.Join(dir, CombinedFile), files[2])
	assert.Equal(t, [][]byte{[]byte("page-P0"), []byte("page-P9")}, combined.Documents)

	b, err := os.ReadFile(files[2])
	require.NoError(t, err)
	assert.Equal(t, "%PDF-all", string(b))
}

func TestGenerate_CombineFailure(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /render", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("page"))
	})
	mux.HandleFunc("POST /combine", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "too large", http.StatusRequestEntityTooLarge)
	})
	ts := httptest.NewServer(mux)
	defer ts.Close()

	r := &HTTPRenderer{URL: ts.URL + "/render", CombineURL: ts.URL + "/combine"}
	files, err := NewGenerator(r, Options{}, nil).Generate(context.Background(), &models.Event{Name: "E"},
		[]models.Registration{reg("A", "B", "ano")}, t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "too large")
	assert.Len(t, files, 1, "rendered pages are kept")
}

func TestHTTPRenderer_Error(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer ts.Close()

	_, err := (&HTTPRenderer{URL: ts.URL}).Render(context.Background(), Page{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quota exceeded")
}
