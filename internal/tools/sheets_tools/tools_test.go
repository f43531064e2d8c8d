package sheets_tools

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/jernst/mailsheets/internal/contract"
	"github.com/jernst/mailsheets/internal/drive"
	"github.com/jernst/mailsheets/internal/google"
	"github.com/jernst/mailsheets/internal/sheets"
)

type stubSheets struct {
	createCalls int
	updateCalls int

	lastTitle string
	lastID    string
	lastSheet string
	lastData  [][]string

	spreadsheet *sheets.Spreadsheet
	update      *sheets.UpdateResult
	err         error
}

func (s *stubSheets) Create(ctx context.Context, title string) (*sheets.Spreadsheet, error) {
	s.createCalls++
	s.lastTitle = title
	return s.spreadsheet, s.err
}

func (s *stubSheets) UpdateValues(ctx context.Context, spreadsheetID, sheet string, data [][]string) (*sheets.UpdateResult, error) {
	s.updateCalls++
	s.lastID = spreadsheetID
	s.lastSheet = sheet
	s.lastData = data
	return s.update, s.err
}

type stubDrive struct {
	shareCalls int
	linkCalls  int

	lastFileID       string
	lastEmail        string
	lastRole         string
	lastNotification bool

	permissionID string
	link         *drive.FileLink
	err          error
}

func (s *stubDrive) ShareWithUser(ctx context.Context, fileID, email, role string, sendNotification bool) (string, error) {
	s.shareCalls++
	s.lastFileID = fileID
	s.lastEmail = email
	s.lastRole = role
	s.lastNotification = sendNotification
	return s.permissionID, s.err
}

func (s *stubDrive) GetFileLink(ctx context.Context, fileID string) (*drive.FileLink, error) {
	s.linkCalls++
	s.lastFileID = fileID
	return s.link, s.err
}

func callRequest(name string, args map[string]interface{}) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Name = name
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.NotNil(t, result)
	require.Len(t, result.Content, 1)
	text, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected text content")
	return text.Text
}

func sheetsAvailable(svc SpreadsheetService) func(ctx context.Context) (SpreadsheetService, *contract.Error) {
	return func(ctx context.Context) (SpreadsheetService, *contract.Error) {
		return svc, nil
	}
}

func TestCreateSpreadsheetSuccess(t *testing.T) {
	svc := &stubSheets{spreadsheet: &sheets.Spreadsheet{
		ID:     "sheet-1",
		Title:  "Budget",
		Sheets: []string{"Sheet1"},
	}}
	handler := createSpreadsheetHandler(sheetsAvailable(svc))

	result, err := handler(context.Background(), callRequest("create_blank_spreadsheet", map[string]interface{}{
		"input": map[string]interface{}{"title": "Budget"},
	}))
	require.NoError(t, err)

	payload := resultText(t, result)
	assert.Equal(t, "sheet-1", gjson.Get(payload, "spreadsheet_id").String())
	assert.Equal(t, "Budget", gjson.Get(payload, "title").String())
	assert.Equal(t, "Sheet1", gjson.Get(payload, "sheets.0").String())
	assert.Equal(t, "https://docs.google.com/spreadsheets/d/sheet-1/edit", gjson.Get(payload, "url").String())
	assert.Equal(t, 1, svc.createCalls)
}

func TestCreateSpreadsheetRequiresTitle(t *testing.T) {
	svc := &stubSheets{}
	handler := createSpreadsheetHandler(sheetsAvailable(svc))

	result, err := handler(context.Background(), callRequest("create_blank_spreadsheet", map[string]interface{}{
		"input": map[string]interface{}{},
	}))
	require.NoError(t, err)

	payload := resultText(t, result)
	assert.Equal(t, "ValidationError", gjson.Get(payload, "error_type").String())
	assert.Equal(t, 0, svc.createCalls)
}

func TestCreateSpreadsheetApiFailure(t *testing.T) {
	svc := &stubSheets{err: errors.New("quota exceeded")}
	handler := createSpreadsheetHandler(sheetsAvailable(svc))

	result, err := handler(context.Background(), callRequest("create_blank_spreadsheet", map[string]interface{}{
		"input": map[string]interface{}{"title": "Budget"},
	}))
	require.NoError(t, err)

	payload := resultText(t, result)
	assert.Equal(t, "SpreadsheetError", gjson.Get(payload, "error_type").String())
	assert.True(t, gjson.Get(payload, "details.service_available").Bool())
	assert.Equal(t, "Budget", gjson.Get(payload, "details.title").String())
}

func TestWriteDataSuccessDefaultsSheet(t *testing.T) {
	svc := &stubSheets{update: &sheets.UpdateResult{
		UpdatedRange:   "Sheet1!A1:B3",
		UpdatedRows:    3,
		UpdatedColumns: 2,
		UpdatedCells:   6,
	}}
	handler := writeDataHandler(sheetsAvailable(svc))

	result, err := handler(context.Background(), callRequest("write_data_to_spreadsheet", map[string]interface{}{
		"input": map[string]interface{}{
			"spreadsheet_id": "sheet-1",
			"data": []interface{}{
				[]interface{}{"a", "b"},
				[]interface{}{"c", "d"},
				[]interface{}{"e", "f"},
			},
		},
	}))
	require.NoError(t, err)

	payload := resultText(t, result)
	assert.Equal(t, "sheet-1", gjson.Get(payload, "spreadsheet_id").String())
	assert.Equal(t, "Sheet1", gjson.Get(payload, "sheet").String())
	assert.Equal(t, "Sheet1!A1:B3", gjson.Get(payload, "updated_range").String())
	assert.Equal(t, int64(3), gjson.Get(payload, "updated_rows").Int())
	assert.Equal(t, int64(2), gjson.Get(payload, "updated_columns").Int())
	assert.Equal(t, int64(6), gjson.Get(payload, "updated_cells").Int())
	assert.Equal(t, "https://docs.google.com/spreadsheets/d/sheet-1/edit", gjson.Get(payload, "url").String())

	assert.Equal(t, 1, svc.updateCalls)
	assert.Equal(t, "Sheet1", svc.lastSheet)
	assert.Equal(t, [][]string{{"a", "b"}, {"c", "d"}, {"e", "f"}}, svc.lastData)
}

func TestWriteDataValidation(t *testing.T) {
	tests := []struct {
		name  string
		input map[string]interface{}
	}{
		{
			name:  "missing spreadsheet_id",
			input: map[string]interface{}{"data": []interface{}{[]interface{}{"a"}}},
		},
		{
			name:  "missing data",
			input: map[string]interface{}{"spreadsheet_id": "sheet-1"},
		},
		{
			name: "empty data",
			input: map[string]interface{}{
				"spreadsheet_id": "sheet-1",
				"data":           []interface{}{},
			},
		},
		{
			name: "empty row",
			input: map[string]interface{}{
				"spreadsheet_id": "sheet-1",
				"data":           []interface{}{[]interface{}{}},
			},
		},
		{
			name: "non-string cell",
			input: map[string]interface{}{
				"spreadsheet_id": "sheet-1",
				"data":           []interface{}{[]interface{}{1, 2}},
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			svc := &stubSheets{}
			handler := writeDataHandler(sheetsAvailable(svc))

			result, err := handler(context.Background(), callRequest("write_data_to_spreadsheet", map[string]interface{}{
				"input": tc.input,
			}))
			require.NoError(t, err)

			payload := resultText(t, result)
			assert.Equal(t, "ValidationError", gjson.Get(payload, "error_type").String())
			assert.Equal(t, 0, svc.updateCalls)
		})
	}
}

func TestWriteDataApiFailure(t *testing.T) {
	svc := &stubSheets{err: errors.New("not found")}
	handler := writeDataHandler(sheetsAvailable(svc))

	result, err := handler(context.Background(), callRequest("write_data_to_spreadsheet", map[string]interface{}{
		"input": map[string]interface{}{
			"spreadsheet_id": "missing-sheet",
			"data":           []interface{}{[]interface{}{"a"}},
		},
	}))
	require.NoError(t, err)

	payload := resultText(t, result)
	assert.Equal(t, "SpreadsheetError", gjson.Get(payload, "error_type").String())
	assert.True(t, gjson.Get(payload, "details.service_available").Bool())
	assert.Equal(t, "missing-sheet", gjson.Get(payload, "details.spreadsheet_id").String())
}

func TestShareSpreadsheetDefaults(t *testing.T) {
	svc := &stubDrive{permissionID: "perm-9"}
	handler := shareSpreadsheetHandler(func(ctx context.Context) (SharingService, *contract.Error) {
		return svc, nil
	})

	result, err := handler(context.Background(), callRequest("share_spreadsheet", map[string]interface{}{
		"input": map[string]interface{}{
			"spreadsheet_id": "sheet-1",
			"email":          "jane@example.com",
		},
	}))
	require.NoError(t, err)

	payload := resultText(t, result)
	assert.Equal(t, "sheet-1", gjson.Get(payload, "spreadsheet_id").String())
	assert.Equal(t, "jane@example.com", gjson.Get(payload, "email").String())
	assert.Equal(t, "reader", gjson.Get(payload, "role").String())
	assert.True(t, gjson.Get(payload, "success").Bool())
	assert.Equal(t, "perm-9", gjson.Get(payload, "permission_id").String())
	assert.Equal(t, "https://docs.google.com/spreadsheets/d/sheet-1/edit", gjson.Get(payload, "url").String())

	assert.Equal(t, "reader", svc.lastRole)
	assert.True(t, svc.lastNotification, "notification defaults to on")
}

func TestShareSpreadsheetExplicitRoleAndNotification(t *testing.T) {
	svc := &stubDrive{permissionID: "perm-9"}
	handler := shareSpreadsheetHandler(func(ctx context.Context) (SharingService, *contract.Error) {
		return svc, nil
	})

	result, err := handler(context.Background(), callRequest("share_spreadsheet", map[string]interface{}{
		"input": map[string]interface{}{
			"spreadsheet_id":    "sheet-1",
			"email":             "jane@example.com",
			"role":              "writer",
			"send_notification": false,
		},
	}))
	require.NoError(t, err)

	payload := resultText(t, result)
	assert.Equal(t, "writer", gjson.Get(payload, "role").String())
	assert.Equal(t, "writer", svc.lastRole)
	assert.False(t, svc.lastNotification)
}

func TestShareSpreadsheetRejectsUnknownRole(t *testing.T) {
	svc := &stubDrive{}
	handler := shareSpreadsheetHandler(func(ctx context.Context) (SharingService, *contract.Error) {
		return svc, nil
	})

	result, err := handler(context.Background(), callRequest("share_spreadsheet", map[string]interface{}{
		"input": map[string]interface{}{
			"spreadsheet_id": "sheet-1",
			"email":          "jane@example.com",
			"role":           "owner",
		},
	}))
	require.NoError(t, err)

	payload := resultText(t, result)
	assert.Equal(t, "ValidationError", gjson.Get(payload, "error_type").String())
	assert.Equal(t, 0, svc.shareCalls)
}

func TestShareSpreadsheetApiFailure(t *testing.T) {
	svc := &stubDrive{err: errors.New("permission denied")}
	handler := shareSpreadsheetHandler(func(ctx context.Context) (SharingService, *contract.Error) {
		return svc, nil
	})

	result, err := handler(context.Background(), callRequest("share_spreadsheet", map[string]interface{}{
		"input": map[string]interface{}{
			"spreadsheet_id": "sheet-1",
			"email":          "jane@example.com",
		},
	}))
	require.NoError(t, err)

	payload := resultText(t, result)
	assert.Equal(t, "SharingError", gjson.Get(payload, "error_type").String())
	assert.True(t, gjson.Get(payload, "details.service_available").Bool())
	assert.Equal(t, "sheet-1", gjson.Get(payload, "details.spreadsheet_id").String())
	assert.Equal(t, "jane@example.com", gjson.Get(payload, "details.email").String())
}

func TestGetSpreadsheetLink(t *testing.T) {
	svc := &stubDrive{link: &drive.FileLink{
		Name:        "Budget",
		WebViewLink: "https://docs.google.com/spreadsheets/d/sheet-1/edit#gid=0",
	}}
	handler := getSpreadsheetLinkHandler(func(ctx context.Context) (LinkService, *contract.Error) {
		return svc, nil
	})

	result, err := handler(context.Background(), callRequest("get_spreadsheet_link", map[string]interface{}{
		"input": map[string]interface{}{"spreadsheet_id": "sheet-1"},
	}))
	require.NoError(t, err)

	payload := resultText(t, result)
	assert.Equal(t, "sheet-1", gjson.Get(payload, "spreadsheet_id").String())
	assert.Equal(t, "Budget", gjson.Get(payload, "title").String())
	assert.Equal(t, "https://docs.google.com/spreadsheets/d/sheet-1/edit#gid=0", gjson.Get(payload, "url").String())
}

func TestGetSpreadsheetLinkFallsBackToCanonicalURL(t *testing.T) {
	svc := &stubDrive{link: &drive.FileLink{Name: "Budget"}}
	handler := getSpreadsheetLinkHandler(func(ctx context.Context) (LinkService, *contract.Error) {
		return svc, nil
	})

	result, err := handler(context.Background(), callRequest("get_spreadsheet_link", map[string]interface{}{
		"input": map[string]interface{}{"spreadsheet_id": "sheet-1"},
	}))
	require.NoError(t, err)

	payload := resultText(t, result)
	assert.Equal(t, "https://docs.google.com/spreadsheets/d/sheet-1/edit", gjson.Get(payload, "url").String())
}

func TestGetSpreadsheetLinkApiFailure(t *testing.T) {
	svc := &stubDrive{err: errors.New("file not found")}
	handler := getSpreadsheetLinkHandler(func(ctx context.Context) (LinkService, *contract.Error) {
		return svc, nil
	})

	result, err := handler(context.Background(), callRequest("get_spreadsheet_link", map[string]interface{}{
		"input": map[string]interface{}{"spreadsheet_id": "missing"},
	}))
	require.NoError(t, err)

	payload := resultText(t, result)
	assert.Equal(t, "LinkError", gjson.Get(payload, "error_type").String())
	assert.True(t, gjson.Get(payload, "details.service_available").Bool())
	assert.Equal(t, "missing", gjson.Get(payload, "details.spreadsheet_id").String())
}

func TestServiceErrorClassification(t *testing.T) {
	cerr := serviceError("Sheets", errors.New("network down"))
	assert.Equal(t, contract.KindService, cerr.Kind)
	assert.Equal(t, false, cerr.Details["service_available"])

	cerr = serviceError("Sheets", fmt.Errorf("obtain token: %w", google.ErrReauthRequired))
	assert.Equal(t, contract.KindAuth, cerr.Kind)
	assert.Equal(t, false, cerr.Details["service_available"])
}
