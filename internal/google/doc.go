// Package google manages the OAuth2 credential lifecycle shared by every
// Google API client in the server.
//
// A Store loads the persisted token file, refreshes expired tokens when a
// refresh token is present, and runs the interactive installed-app
// authorization flow when allowed. In fetch-only mode the interactive flow
// is never started; an expired or absent token is a hard failure and the
// operator must run `mailsheets setup`.
package google
