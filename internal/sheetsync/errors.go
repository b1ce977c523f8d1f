package sheetsync

import "errors"

var (
	// ErrSourceUnavailable wraps any failure talking to the spreadsheet.
	ErrSourceUnavailable = errors.New("spreadsheet unavailable")
	// ErrEmptyHeader means the first row of the sheet is missing or blank; nothing was changed.
	ErrEmptyHeader = errors.New("spreadsheet has no header row")
)
