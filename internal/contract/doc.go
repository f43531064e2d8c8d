// Package contract implements the uniform tool invocation contract.
//
// Every tool call produces exactly one response envelope of the form
//
//	{"content": [{"type": "text", "text": <JSON>}]}
//
// where the embedded JSON is either the tool's typed output or an error
// envelope {"error_type", "message", "details"}. Success and failure share
// the same channel; callers distinguish them by the shape of the embedded
// JSON. No fault raised inside a handler may cross the transport boundary:
// validation failures, missing service handles, external API errors and
// panics are all rendered into the error envelope here.
package contract
