package sheets

import (
	"context"
	"fmt"

	"google.golang.org/api/option"
	sheets "google.golang.org/api/sheets/v4"

	"github.com/jernst/mailsheets/internal/google"
)

// DefaultSheet is the sheet name new spreadsheets start with.
const DefaultSheet = "Sheet1"

// Client wraps the Google Sheets API service.
type Client struct {
	service *sheets.Service
}

// NewClient creates a Sheets client backed by the credential store.
func NewClient(ctx context.Context, store *google.Store) (*Client, error) {
	httpClient, err := store.Client(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to obtain Google credentials: %w", err)
	}

	service, err := sheets.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("failed to create Sheets service: %w", err)
	}

	return &Client{service: service}, nil
}

// Spreadsheet is the metadata of a created spreadsheet.
type Spreadsheet struct {
	ID     string
	Title  string
	Sheets []string
}

// Create creates a blank spreadsheet with the given title.
func (c *Client) Create(ctx context.Context, title string) (*Spreadsheet, error) {
	spreadsheet, err := c.service.Spreadsheets.Create(&sheets.Spreadsheet{
		Properties: &sheets.SpreadsheetProperties{
			Title: title,
		},
	}).Fields("spreadsheetId,properties,sheets").Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to create spreadsheet: %w", err)
	}

	result := &Spreadsheet{
		ID:    spreadsheet.SpreadsheetId,
		Title: title,
	}
	if spreadsheet.Properties != nil && spreadsheet.Properties.Title != "" {
		result.Title = spreadsheet.Properties.Title
	}
	for _, sheet := range spreadsheet.Sheets {
		name := DefaultSheet
		if sheet.Properties != nil && sheet.Properties.Title != "" {
			name = sheet.Properties.Title
		}
		result.Sheets = append(result.Sheets, name)
	}

	return result, nil
}

// SpreadsheetURL returns the browser URL for a spreadsheet ID.
func SpreadsheetURL(spreadsheetID string) string {
	return "https://docs.google.com/spreadsheets/d/" + spreadsheetID + "/edit"
}

// UpdateResult reports what an update touched.
type UpdateResult struct {
	UpdatedRange   string
	UpdatedRows    int64
	UpdatedColumns int64
	UpdatedCells   int64
}

// UpdateValues writes data into the named sheet starting at A1. Values are
// written as entered, so numeric-looking strings become numbers the way they
// would when typed into the UI.
func (c *Client) UpdateValues(ctx context.Context, spreadsheetID, sheet string, data [][]string) (*UpdateResult, error) {
	rangeA1, err := RangeForData(sheet, data)
	if err != nil {
		return nil, err
	}

	values := make([][]interface{}, len(data))
	for i, row := range data {
		values[i] = make([]interface{}, len(row))
		for j, cell := range row {
			values[i][j] = cell
		}
	}

	resp, err := c.service.Spreadsheets.Values.Update(spreadsheetID, rangeA1, &sheets.ValueRange{
		Values: values,
	}).ValueInputOption("USER_ENTERED").Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to update spreadsheet values: %w", err)
	}

	return &UpdateResult{
		UpdatedRange:   resp.UpdatedRange,
		UpdatedRows:    resp.UpdatedRows,
		UpdatedColumns: resp.UpdatedColumns,
		UpdatedCells:   resp.UpdatedCells,
	}, nil
}
