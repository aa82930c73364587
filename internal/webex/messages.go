package webex

import (
	"context"
	"fmt"
	"net/http"
)

// Me returns the account the bearer token belongs to. The email aliases are
// the listener's ignore-set.
func (c *Client) Me(ctx context.Context) (*Person, error) {
	var person Person
	if err := c.do(ctx, http.MethodGet, c.APIBaseURL+"/people/me", nil, &person); err != nil {
		return nil, fmt.Errorf("failed to fetch own account: %w", err)
	}
	return &person, nil
}

// GetMessage fetches the full message behind an opaque reference. The public
// API accepts both its native identifier form and a raw correlation id.
func (c *Client) GetMessage(ctx context.Context, ref string) (*Message, error) {
	var message Message
	if err := c.do(ctx, http.MethodGet, c.APIBaseURL+"/messages/"+ref, nil, &message); err != nil {
		return nil, err
	}
	return &message, nil
}

// PostMessage posts a markdown message into a room
func (c *Client) PostMessage(ctx context.Context, roomID, markdown string) error {
	request := messageRequest{RoomID: roomID, Markdown: markdown}
	if err := c.do(ctx, http.MethodPost, c.APIBaseURL+"/messages", request, nil); err != nil {
		return fmt.Errorf("failed to post message: %w", err)
	}
	return nil
}

// PostFile posts a message with a single file attachment into a room.
// The API supports one attachment per message.
func (c *Client) PostFile(ctx context.Context, roomID, text, fileURL string) error {
	request := messageRequest{RoomID: roomID, Text: text, Files: []string{fileURL}}
	if err := c.do(ctx, http.MethodPost, c.APIBaseURL+"/messages", request, nil); err != nil {
		return fmt.Errorf("failed to post file: %w", err)
	}
	return nil
}
