// Package gmail provides a thin, send-only client on top of the Gmail API.
package gmail
