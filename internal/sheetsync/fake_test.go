package sheetsync

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"sync"

	"github.com/stretchr/testify/mock"
)

var a1Rows = regexp.MustCompile(`^[A-Z]+(\d+):[A-Z]+(\d+)$`)

type write struct {
	Range string
	Value string
}

// fakeSheet serves one sheet; rows[0] is sheet row 1.
type fakeSheet struct {
	mu       sync.Mutex
	rows     [][]string
	gets     []string
	writes   []write
	failFrom int             // GetRange starting at or after this row fails; 0 disables
	failGet  error           // every GetRange fails
	failPut  map[string]bool // ranges whose UpdateRange fails
}

var errBackend = errors.New("backend down")

func (f *fakeSheet) GetRange(ctx context.Context, tableID, sheet, a1 string) ([][]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gets = append(f.gets, a1)
	if f.failGet != nil {
		return nil, f.failGet
	}
	m := a1Rows.FindStringSubmatch(a1)
	if m == nil {
		return nil, fmt.Errorf("bad range %q", a1)
	}
	from, _ := strconv.Atoi(m[1])
	to, _ := strconv.Atoi(m[2])
	if f.failFrom > 0 && from >= f.failFrom {
		return nil, errBackend
	}
	var out [][]string
	for r := from; r <= to && r <= len(f.rows); r++ {
		out = append(out, f.rows[r-1])
	}
	// the API drops trailing empty rows
	for len(out) > 0 && len(out[len(out)-1]) == 0 {
		out = out[:len(out)-1]
	}
	return out, nil
}

func (f *fakeSheet) UpdateRange(ctx context.Context, tableID, sheet, a1 string, values [][]string) error {
	rng := "'" + sheet + "'!" + a1
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failPut[rng] {
		return errBackend
	}
	f.writes = append(f.writes, write{Range: rng, Value: values[0][0]})
	return nil
}

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) Notify(ctx context.Context, text string) error {
	args := m.Called(ctx, text)
	return args.Error(0)
}
