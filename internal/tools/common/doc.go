// Package common provides shared helpers for MCP tool handlers, notably the
// instrumentation wrapper applied to every registered tool.
package common
