package sheets_tools

import (
	"context"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/jernst/mailsheets/internal/contract"
	"github.com/jernst/mailsheets/internal/drive"
	"github.com/jernst/mailsheets/internal/google"
	"github.com/jernst/mailsheets/internal/instrumentation"
	"github.com/jernst/mailsheets/internal/server"
	"github.com/jernst/mailsheets/internal/sheets"
	"github.com/jernst/mailsheets/internal/tools/common"
)

// SpreadsheetService covers the Sheets operations the tools need.
type SpreadsheetService interface {
	Create(ctx context.Context, title string) (*sheets.Spreadsheet, error)
	UpdateValues(ctx context.Context, spreadsheetID, sheet string, data [][]string) (*sheets.UpdateResult, error)
}

// SharingService grants file permissions.
type SharingService interface {
	ShareWithUser(ctx context.Context, fileID, email, role string, sendNotification bool) (string, error)
}

// LinkService resolves file metadata and browser links.
type LinkService interface {
	GetFileLink(ctx context.Context, fileID string) (*drive.FileLink, error)
}

// CreateSpreadsheetInput is the payload of the create_blank_spreadsheet tool.
type CreateSpreadsheetInput struct {
	Title string `json:"title"`
}

// Validate implements contract.Validatable.
func (in *CreateSpreadsheetInput) Validate() *contract.Error {
	if in.Title == "" {
		return contract.ValidationError("title is required")
	}
	return nil
}

// CreateSpreadsheetOutput is the success payload of create_blank_spreadsheet.
type CreateSpreadsheetOutput struct {
	SpreadsheetID string   `json:"spreadsheet_id"`
	Title         string   `json:"title"`
	Sheets        []string `json:"sheets"`
	URL           string   `json:"url"`
}

func createSpreadsheetHandler(resolve func(ctx context.Context) (SpreadsheetService, *contract.Error)) contract.HandlerFunc {
	return contract.Tool("create_blank_spreadsheet", contract.KindSpreadsheet, func(ctx context.Context, in CreateSpreadsheetInput) (CreateSpreadsheetOutput, *contract.Error) {
		svc, cerr := resolve(ctx)
		if cerr != nil {
			return CreateSpreadsheetOutput{}, cerr
		}

		spreadsheet, err := svc.Create(ctx, in.Title)
		if err != nil {
			return CreateSpreadsheetOutput{}, contract.Errorf(contract.KindSpreadsheet, "failed to create spreadsheet: %v", err).
				WithDetail("service_available", true).
				WithDetail("title", in.Title)
		}

		sheetNames := spreadsheet.Sheets
		if sheetNames == nil {
			sheetNames = []string{}
		}
		return CreateSpreadsheetOutput{
			SpreadsheetID: spreadsheet.ID,
			Title:         spreadsheet.Title,
			Sheets:        sheetNames,
			URL:           sheets.SpreadsheetURL(spreadsheet.ID),
		}, nil
	})
}

// WriteDataInput is the payload of the write_data_to_spreadsheet tool. Sheet
// defaults to Sheet1 when omitted.
type WriteDataInput struct {
	SpreadsheetID string     `json:"spreadsheet_id"`
	Sheet         string     `json:"sheet,omitempty"`
	Data          [][]string `json:"data"`
}

// Validate implements contract.Validatable. The target range is derived from
// the data shape here so that malformed data never reaches the API.
func (in *WriteDataInput) Validate() *contract.Error {
	if in.SpreadsheetID == "" {
		return contract.ValidationError("spreadsheet_id is required")
	}
	if _, err := sheets.RangeForData(in.Sheet, in.Data); err != nil {
		return contract.ValidationError(fmt.Sprintf("invalid data: %v", err))
	}
	return nil
}

// WriteDataOutput is the success payload of write_data_to_spreadsheet.
type WriteDataOutput struct {
	SpreadsheetID  string `json:"spreadsheet_id"`
	Sheet          string `json:"sheet"`
	UpdatedRange   string `json:"updated_range"`
	UpdatedRows    int64  `json:"updated_rows"`
	UpdatedColumns int64  `json:"updated_columns"`
	UpdatedCells   int64  `json:"updated_cells"`
	URL            string `json:"url"`
}

func writeDataHandler(resolve func(ctx context.Context) (SpreadsheetService, *contract.Error)) contract.HandlerFunc {
	return contract.Tool("write_data_to_spreadsheet", contract.KindSpreadsheet, func(ctx context.Context, in WriteDataInput) (WriteDataOutput, *contract.Error) {
		svc, cerr := resolve(ctx)
		if cerr != nil {
			return WriteDataOutput{}, cerr
		}

		sheet := in.Sheet
		if sheet == "" {
			sheet = sheets.DefaultSheet
		}

		result, err := svc.UpdateValues(ctx, in.SpreadsheetID, sheet, in.Data)
		if err != nil {
			return WriteDataOutput{}, contract.Errorf(contract.KindSpreadsheet, "failed to write data to spreadsheet: %v", err).
				WithDetail("service_available", true).
				WithDetail("spreadsheet_id", in.SpreadsheetID)
		}

		return WriteDataOutput{
			SpreadsheetID:  in.SpreadsheetID,
			Sheet:          sheet,
			UpdatedRange:   result.UpdatedRange,
			UpdatedRows:    result.UpdatedRows,
			UpdatedColumns: result.UpdatedColumns,
			UpdatedCells:   result.UpdatedCells,
			URL:            sheets.SpreadsheetURL(in.SpreadsheetID),
		}, nil
	})
}

// ShareSpreadsheetInput is the payload of the share_spreadsheet tool. Role
// defaults to reader; notification emails are sent unless disabled.
type ShareSpreadsheetInput struct {
	SpreadsheetID    string `json:"spreadsheet_id"`
	Email            string `json:"email"`
	Role             string `json:"role,omitempty"`
	SendNotification *bool  `json:"send_notification,omitempty"`
}

// Validate implements contract.Validatable.
func (in *ShareSpreadsheetInput) Validate() *contract.Error {
	if in.SpreadsheetID == "" {
		return contract.ValidationError("spreadsheet_id is required")
	}
	if in.Email == "" {
		return contract.ValidationError("email is required")
	}
	if in.Role != "" && !drive.ValidRole(in.Role) {
		return contract.ValidationError(fmt.Sprintf("role must be one of reader, commenter, writer; got %q", in.Role))
	}
	return nil
}

// ShareSpreadsheetOutput is the success payload of share_spreadsheet.
type ShareSpreadsheetOutput struct {
	SpreadsheetID string `json:"spreadsheet_id"`
	Email         string `json:"email"`
	Role          string `json:"role"`
	Success       bool   `json:"success"`
	PermissionID  string `json:"permission_id"`
	URL           string `json:"url"`
}

func shareSpreadsheetHandler(resolve func(ctx context.Context) (SharingService, *contract.Error)) contract.HandlerFunc {
	return contract.Tool("share_spreadsheet", contract.KindSharing, func(ctx context.Context, in ShareSpreadsheetInput) (ShareSpreadsheetOutput, *contract.Error) {
		svc, cerr := resolve(ctx)
		if cerr != nil {
			return ShareSpreadsheetOutput{}, cerr
		}

		role := in.Role
		if role == "" {
			role = drive.RoleReader
		}
		sendNotification := true
		if in.SendNotification != nil {
			sendNotification = *in.SendNotification
		}

		permissionID, err := svc.ShareWithUser(ctx, in.SpreadsheetID, in.Email, role, sendNotification)
		if err != nil {
			return ShareSpreadsheetOutput{}, contract.Errorf(contract.KindSharing, "failed to share spreadsheet: %v", err).
				WithDetail("service_available", true).
				WithDetail("spreadsheet_id", in.SpreadsheetID).
				WithDetail("email", in.Email)
		}

		return ShareSpreadsheetOutput{
			SpreadsheetID: in.SpreadsheetID,
			Email:         in.Email,
			Role:          role,
			Success:       true,
			PermissionID:  permissionID,
			URL:           sheets.SpreadsheetURL(in.SpreadsheetID),
		}, nil
	})
}

// GetSpreadsheetLinkInput is the payload of the get_spreadsheet_link tool.
type GetSpreadsheetLinkInput struct {
	SpreadsheetID string `json:"spreadsheet_id"`
}

// Validate implements contract.Validatable.
func (in *GetSpreadsheetLinkInput) Validate() *contract.Error {
	if in.SpreadsheetID == "" {
		return contract.ValidationError("spreadsheet_id is required")
	}
	return nil
}

// GetSpreadsheetLinkOutput is the success payload of get_spreadsheet_link.
type GetSpreadsheetLinkOutput struct {
	SpreadsheetID string `json:"spreadsheet_id"`
	Title         string `json:"title"`
	URL           string `json:"url"`
}

func getSpreadsheetLinkHandler(resolve func(ctx context.Context) (LinkService, *contract.Error)) contract.HandlerFunc {
	return contract.Tool("get_spreadsheet_link", contract.KindLink, func(ctx context.Context, in GetSpreadsheetLinkInput) (GetSpreadsheetLinkOutput, *contract.Error) {
		svc, cerr := resolve(ctx)
		if cerr != nil {
			return GetSpreadsheetLinkOutput{}, cerr
		}

		link, err := svc.GetFileLink(ctx, in.SpreadsheetID)
		if err != nil {
			return GetSpreadsheetLinkOutput{}, contract.Errorf(contract.KindLink, "failed to get spreadsheet link: %v", err).
				WithDetail("service_available", true).
				WithDetail("spreadsheet_id", in.SpreadsheetID)
		}

		url := link.WebViewLink
		if url == "" {
			url = sheets.SpreadsheetURL(in.SpreadsheetID)
		}
		return GetSpreadsheetLinkOutput{
			SpreadsheetID: in.SpreadsheetID,
			Title:         link.Name,
			URL:           url,
		}, nil
	})
}

func resolveSheets(sc *server.ServerContext) func(ctx context.Context) (SpreadsheetService, *contract.Error) {
	return func(ctx context.Context) (SpreadsheetService, *contract.Error) {
		client, err := sc.SheetsClient()
		if err != nil {
			return nil, serviceError("Sheets", err)
		}
		return client, nil
	}
}

func resolveDriveSharing(sc *server.ServerContext) func(ctx context.Context) (SharingService, *contract.Error) {
	return func(ctx context.Context) (SharingService, *contract.Error) {
		client, err := sc.DriveClient()
		if err != nil {
			return nil, serviceError("Drive", err)
		}
		return client, nil
	}
}

func resolveDriveLinks(sc *server.ServerContext) func(ctx context.Context) (LinkService, *contract.Error) {
	return func(ctx context.Context) (LinkService, *contract.Error) {
		client, err := sc.DriveClient()
		if err != nil {
			return nil, serviceError("Drive", err)
		}
		return client, nil
	}
}

func serviceError(service string, err error) *contract.Error {
	if errors.Is(err, google.ErrReauthRequired) {
		return contract.Errorf(contract.KindAuth, "%s authorization required: %v", service, err).
			WithDetail("service_available", false)
	}
	return contract.ServiceUnavailable(service)
}

// RegisterSheetTools registers the spreadsheet tools with the MCP server.
func RegisterSheetTools(s *mcpserver.MCPServer, sc *server.ServerContext) error {
	createTool := mcp.NewTool("create_blank_spreadsheet",
		mcp.WithDescription("Create a new blank Google Spreadsheet with the given title"),
		mcp.WithObject("input",
			mcp.Required(),
			mcp.Description("Spreadsheet to create"),
			mcp.Properties(map[string]any{
				"title": map[string]any{
					"type":        "string",
					"description": "Title of the new spreadsheet",
				},
			}),
		),
	)
	s.AddTool(createTool, common.InstrumentedToolHandler(
		"create_blank_spreadsheet",
		instrumentation.ServiceSheets,
		instrumentation.OperationCreate,
		sc,
		createSpreadsheetHandler(resolveSheets(sc)),
	))

	writeTool := mcp.NewTool("write_data_to_spreadsheet",
		mcp.WithDescription("Write a rectangular block of data into a spreadsheet starting at A1"),
		mcp.WithObject("input",
			mcp.Required(),
			mcp.Description("Data to write"),
			mcp.Properties(map[string]any{
				"spreadsheet_id": map[string]any{
					"type":        "string",
					"description": "ID of the target spreadsheet",
				},
				"sheet": map[string]any{
					"type":        "string",
					"description": "Sheet name (default: Sheet1)",
				},
				"data": map[string]any{
					"type":        "array",
					"description": "Rows of string cells",
					"items": map[string]any{
						"type":  "array",
						"items": map[string]any{"type": "string"},
					},
				},
			}),
		),
	)
	s.AddTool(writeTool, common.InstrumentedToolHandler(
		"write_data_to_spreadsheet",
		instrumentation.ServiceSheets,
		instrumentation.OperationUpdate,
		sc,
		writeDataHandler(resolveSheets(sc)),
	))

	shareTool := mcp.NewTool("share_spreadsheet",
		mcp.WithDescription("Share a spreadsheet with a user by email address"),
		mcp.WithObject("input",
			mcp.Required(),
			mcp.Description("Sharing grant"),
			mcp.Properties(map[string]any{
				"spreadsheet_id": map[string]any{
					"type":        "string",
					"description": "ID of the spreadsheet to share",
				},
				"email": map[string]any{
					"type":        "string",
					"description": "Email address of the user to share with",
				},
				"role": map[string]any{
					"type":        "string",
					"description": "Access role: reader, commenter or writer (default: reader)",
				},
				"send_notification": map[string]any{
					"type":        "boolean",
					"description": "Send a notification email to the user (default: true)",
				},
			}),
		),
	)
	s.AddTool(shareTool, common.InstrumentedToolHandler(
		"share_spreadsheet",
		instrumentation.ServiceDrive,
		instrumentation.OperationShare,
		sc,
		shareSpreadsheetHandler(resolveDriveSharing(sc)),
	))

	linkTool := mcp.NewTool("get_spreadsheet_link",
		mcp.WithDescription("Get the title and browser link of a spreadsheet"),
		mcp.WithObject("input",
			mcp.Required(),
			mcp.Description("Spreadsheet to look up"),
			mcp.Properties(map[string]any{
				"spreadsheet_id": map[string]any{
					"type":        "string",
					"description": "ID of the spreadsheet",
				},
			}),
		),
	)
	s.AddTool(linkTool, common.InstrumentedToolHandler(
		"get_spreadsheet_link",
		instrumentation.ServiceDrive,
		instrumentation.OperationGet,
		sc,
		getSpreadsheetLinkHandler(resolveDriveLinks(sc)),
	))

	return nil
}
