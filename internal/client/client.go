// internal/client/client.go

// Package client is the agent's typed view of the hub's REST surface.
package client

import (
	"context"
	"fmt"
	"net/url"
	"time"

	stderrors "notification-hub/internal/common/errors"
	"notification-hub/internal/common/httpclient"
	"notification-hub/internal/models"
)

// ErrStaleResponse marks a response superseded by a newer request for the
// same resource key. Callers drop the result and keep their current state.
var ErrStaleResponse = stderrors.NewValidationError("response superseded by a newer request")

// Client talks to the hub API on behalf of one user.
type Client struct {
	http   *httpclient.Client
	userID string
	guard  *seqGuard
}

// New creates a hub API client.
func New(baseURL, userID string, timeout time.Duration) *Client {
	return &Client{
		http:   httpclient.New(baseURL, timeout),
		userID: userID,
		guard:  newSeqGuard(),
	}
}

// List fetches one page of notifications. Stale responses (superseded by a
// newer List call that already completed) return ErrStaleResponse.
func (c *Client) List(ctx context.Context, q models.ListQuery) (*models.ListResult, error) {
	seq := c.guard.begin("list")

	q.Normalize()
	params := url.Values{}
	params.Set("user", c.userID)
	params.Set("page", fmt.Sprintf("%d", q.Page))
	params.Set("limit", fmt.Sprintf("%d", q.Limit))
	if q.UnreadOnly {
		params.Set("unread_only", "true")
	}
	if q.ReadOnly {
		params.Set("read_only", "true")
	}
	if q.Type != "" {
		params.Set("type", q.Type)
	}
	if q.Priority != "" {
		params.Set("priority", q.Priority)
	}
	if q.Search != "" {
		params.Set("search", q.Search)
	}

	var result models.ListResult
	if err := c.http.GetJSON(ctx, "/api/v1/notifications?"+params.Encode(), &result); err != nil {
		return nil, c.wrap(err)
	}
	if !c.guard.complete("list", seq) {
		return nil, ErrStaleResponse
	}
	return &result, nil
}

// UnreadCount fetches the authoritative unread count.
func (c *Client) UnreadCount(ctx context.Context) (int, error) {
	var result models.UnreadCountResult
	path := "/api/v1/notifications/unread-count?user=" + url.QueryEscape(c.userID)
	if err := c.http.GetJSON(ctx, path, &result); err != nil {
		return 0, c.wrap(err)
	}
	return result.UnreadCount, nil
}

// MarkRead confirms a mark-read mutation with the hub.
func (c *Client) MarkRead(ctx context.Context, id string) error {
	path := fmt.Sprintf("/api/v1/notifications/%s/read?user=%s", url.PathEscape(id), url.QueryEscape(c.userID))
	return c.wrap(c.http.PostJSON(ctx, path, nil, nil))
}

// MarkAllRead confirms a mark-all-read mutation with the hub.
func (c *Client) MarkAllRead(ctx context.Context) error {
	path := "/api/v1/notifications/read-all?user=" + url.QueryEscape(c.userID)
	return c.wrap(c.http.PostJSON(ctx, path, nil, nil))
}

// Delete removes a notification on the hub.
func (c *Client) Delete(ctx context.Context, id string) error {
	path := fmt.Sprintf("/api/v1/notifications/%s?user=%s", url.PathEscape(id), url.QueryEscape(c.userID))
	return c.wrap(c.http.Delete(ctx, path))
}

// GetPreferences fetches the canonical preference record. Stale responses
// return ErrStaleResponse.
func (c *Client) GetPreferences(ctx context.Context) (*models.NotificationPreference, error) {
	seq := c.guard.begin("preferences")

	var prefs models.NotificationPreference
	path := "/api/v1/preferences?user=" + url.QueryEscape(c.userID)
	if err := c.http.GetJSON(ctx, path, &prefs); err != nil {
		return nil, c.wrap(err)
	}
	if !c.guard.complete("preferences", seq) {
		return nil, ErrStaleResponse
	}
	return &prefs, nil
}

// UpdatePreferences sends a partial update and returns the merged record the
// server considers canonical.
func (c *Client) UpdatePreferences(ctx context.Context, update *models.PreferenceUpdate) (*models.NotificationPreference, error) {
	var prefs models.NotificationPreference
	path := "/api/v1/preferences?user=" + url.QueryEscape(c.userID)
	if err := c.http.PutJSON(ctx, path, update, &prefs); err != nil {
		return nil, c.wrap(err)
	}
	return &prefs, nil
}

// PreviewTemplate renders a template server-side with the given variables.
func (c *Client) PreviewTemplate(ctx context.Context, templateID string, vars map[string]interface{}) (map[string]string, error) {
	var rendered map[string]string
	path := fmt.Sprintf("/api/v1/templates/%s/preview", url.PathEscape(templateID))
	if err := c.http.PostJSON(ctx, path, map[string]interface{}{"variables": vars}, &rendered); err != nil {
		return nil, c.wrap(err)
	}
	return rendered, nil
}

// wrap maps transport errors onto the shared taxonomy: 404/409 become
// conflicts (treated as no-op success by mutation callers), everything else
// a retryable request failure.
func (c *Client) wrap(err error) error {
	if err == nil {
		return nil
	}
	if statusErr, ok := err.(*httpclient.StatusError); ok {
		switch statusErr.StatusCode {
		case 404, 409:
			return stderrors.NewConflictError(statusErr.Body)
		}
	}
	return stderrors.NewRequestFailure(err.Error())
}
