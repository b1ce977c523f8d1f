package sheets

import (
	"context"
	"fmt"
	"strings"

	sheetsv4 "google.golang.org/api/sheets/v4"
)

// Range builds an A1 range on a named sheet: Range("Účastníci", "A1:T1") -> 'Účastníci'!A1:T1.
// An empty sheet name addresses the first sheet.
func Range(sheet, a1 string) string {
	if sheet == "" {
		return a1
	}
	return "'" + strings.ReplaceAll(sheet, "'", "''") + "'!" + a1
}

// GetRange reads a block of cells. A range past the end of the data yields nil, not an error.
func (c *Client) GetRange(ctx context.Context, tableID, sheet, a1 string) ([][]string, error) {
	resp, err := c.srv.Spreadsheets.Values.Get(tableID, Range(sheet, a1)).Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	if len(resp.Values) == 0 {
		return nil, nil
	}
	out := make([][]string, len(resp.Values))
	for i, row := range resp.Values {
		cells := make([]string, len(row))
		for j := range row {
			cells[j] = get(row, j)
		}
		out[i] = cells
	}
	return out, nil
}

// UpdateRange overwrites the cells of a1 on sheet with values, unparsed.
func (c *Client) UpdateRange(ctx context.Context, tableID, sheet, a1 string, values [][]string) error {
	rng := Range(sheet, a1)
	rows := make([][]interface{}, len(values))
	for i, row := range values {
		cells := make([]interface{}, len(row))
		for j, v := range row {
			cells[j] = v
		}
		rows[i] = cells
	}
	vr := &sheetsv4.ValueRange{Range: rng, Values: rows}
	_, err := c.srv.Spreadsheets.Values.Update(tableID, rng, vr).
		ValueInputOption("RAW").
		Context(ctx).
		Do()
	return err
}

func get(row []interface{}, idx int) string {
	if idx < 0 || idx >= len(row) || row[idx] == nil {
		return ""
	}
	return fmt.Sprint(row[idx])
}
