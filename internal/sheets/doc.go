// Package sheets wraps the Google Sheets API for creating spreadsheets and
// writing cell data.
package sheets
