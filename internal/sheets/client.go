package sheets

import (
	"context"
	"fmt"
	"os"

	"google.golang.org/api/option"
	sheetsv4 "google.golang.org/api/sheets/v4"
)

const userAgent = "eventreg"

// Client talks to the Google Sheets API for any spreadsheet the service account can open.
type Client struct {
	srv *sheetsv4.Service
}

// New opens a Sheets API session as the service account in serviceAccountJSONPath.
// Every spreadsheet of an event must be shared with that account; extra options
// (endpoint, HTTP client) are passed through to the API client.
func New(ctx context.Context, serviceAccountJSONPath string, opts ...option.ClientOption) (*Client, error) {
	if _, err := os.Stat(serviceAccountJSONPath); err != nil {
		return nil, fmt.Errorf("service account json: %w", err)
	}
	opts = append([]option.ClientOption{
		option.WithCredentialsFile(serviceAccountJSONPath),
		option.WithScopes(sheetsv4.SpreadsheetsScope),
		option.WithUserAgent(userAgent),
	}, opts...)
	srv, err := sheetsv4.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return &Client{srv: srv}, nil
}

// NewWithService wraps an already configured service (custom endpoint, test server).
func NewWithService(srv *sheetsv4.Service) *Client {
	return &Client{srv: srv}
}
