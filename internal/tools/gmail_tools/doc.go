// Package gmail_tools registers the email MCP tools.
package gmail_tools
