// internal/models/query_types.go
package models

// ListQuery is the filter set accepted by the notification list endpoint.
// UnreadOnly and ReadOnly are mutually exclusive; when both are set,
// UnreadOnly wins.
type ListQuery struct {
	UserID     string `json:"userId"`
	Page       int    `json:"page"`
	Limit      int    `json:"limit"`
	UnreadOnly bool   `json:"unreadOnly"`
	ReadOnly   bool   `json:"readOnly"`
	Type       string `json:"type,omitempty"`
	Priority   string `json:"priority,omitempty"`
	Search     string `json:"search,omitempty"`
}

// Normalize clamps paging values to sane defaults.
func (q *ListQuery) Normalize() {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Limit < 1 {
		q.Limit = 20
	}
	if q.Limit > 100 {
		q.Limit = 100
	}
	if q.UnreadOnly {
		q.ReadOnly = false
	}
}

// Offset returns the row offset for the current page.
func (q *ListQuery) Offset() int {
	return (q.Page - 1) * q.Limit
}

// ListResult is the response shape of the notification list endpoint.
type ListResult struct {
	Notifications []Notification `json:"notifications"`
	TotalCount    int            `json:"totalCount"`
	TotalPages    int            `json:"totalPages"`
}

// UnreadCountResult is the response shape of the unread-count endpoint.
type UnreadCountResult struct {
	UnreadCount int `json:"unreadCount"`
}
