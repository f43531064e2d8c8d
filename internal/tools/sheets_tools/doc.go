// Package sheets_tools registers the spreadsheet MCP tools: creating,
// populating, and sharing spreadsheets and resolving their links.
package sheets_tools
