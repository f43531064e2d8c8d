// Package drive wraps the Google Drive API for sharing files and resolving
// their web links.
package drive
