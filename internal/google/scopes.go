package google

import (
	drive "google.golang.org/api/drive/v3"
	gmail "google.golang.org/api/gmail/v1"
	sheets "google.golang.org/api/sheets/v4"
)

// DefaultScopes are the Google OAuth scopes required for the full tool set.
//
// The scopes provide access to:
//   - Gmail: send only (no mailbox read access)
//   - Google Sheets: full spreadsheet access
//   - Google Drive: full access (sharing and link retrieval)
var DefaultScopes = []string{
	gmail.GmailSendScope,
	sheets.SpreadsheetsScope,
	drive.DriveScope,
}
