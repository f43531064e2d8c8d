package drive

import (
	"context"
	"fmt"

	drive "google.golang.org/api/drive/v3"
	"google.golang.org/api/option"

	"github.com/jernst/mailsheets/internal/google"
)

// Roles accepted when sharing a file.
const (
	RoleReader    = "reader"
	RoleCommenter = "commenter"
	RoleWriter    = "writer"
)

// Client wraps the Google Drive API service.
type Client struct {
	service *drive.Service
}

// NewClient creates a Drive client backed by the credential store.
func NewClient(ctx context.Context, store *google.Store) (*Client, error) {
	httpClient, err := store.Client(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to obtain Google credentials: %w", err)
	}

	service, err := drive.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("failed to create Drive service: %w", err)
	}

	return &Client{service: service}, nil
}

// FileLink is a file's display name and browser link.
type FileLink struct {
	Name        string
	WebViewLink string
}

// GetFileLink resolves the name and web link of a file.
func (c *Client) GetFileLink(ctx context.Context, fileID string) (*FileLink, error) {
	file, err := c.service.Files.Get(fileID).
		Context(ctx).
		Fields("name, webViewLink").
		Do()
	if err != nil {
		return nil, fmt.Errorf("failed to get file %s: %w", fileID, err)
	}

	return &FileLink{
		Name:        file.Name,
		WebViewLink: file.WebViewLink,
	}, nil
}

// ValidRole reports whether role is one of the accepted sharing roles.
func ValidRole(role string) bool {
	switch role {
	case RoleReader, RoleCommenter, RoleWriter:
		return true
	}
	return false
}

// ShareWithUser grants role on a file to the user with the given email
// address and returns the created permission ID.
func (c *Client) ShareWithUser(ctx context.Context, fileID, email, role string, sendNotification bool) (string, error) {
	permission, err := c.service.Permissions.Create(fileID, &drive.Permission{
		Type:         "user",
		Role:         role,
		EmailAddress: email,
	}).SendNotificationEmail(sendNotification).Context(ctx).Fields("id").Do()
	if err != nil {
		return "", fmt.Errorf("failed to share file %s: %w", fileID, err)
	}
	return permission.Id, nil
}
