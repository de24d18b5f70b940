// internal/models/template.go
package models

import "time"

// Template variable types. They drive the coercion applied during rendering.
const (
	VarString   = "string"
	VarNumber   = "number"
	VarDate     = "date"
	VarBoolean  = "boolean"
	VarCurrency = "currency"
)

// TemplateVariable declares one named placeholder of a template: its type,
// whether it is required, and the value substituted when the caller provides
// none.
type TemplateVariable struct {
	Name         string      `json:"name"`
	Type         string      `json:"type"`
	Required     bool        `json:"required"`
	DefaultValue interface{} `json:"defaultValue,omitempty"`
}

// TemplateScheduling controls when a dispatched notification is delivered.
type TemplateScheduling struct {
	Immediate         bool `json:"immediate"`
	DelayMinutes      int  `json:"delayMinutes,omitempty"`
	RespectQuietHours bool `json:"respectQuietHours"`
}

// NotificationTemplate is an authored, versioned source of subject/title/
// message text. Version increments on every update; the renderer treats a
// template as immutable per version.
type NotificationTemplate struct {
	ID          string             `json:"id"`
	Name        string             `json:"name"`
	Category    string             `json:"category"`
	Type        string             `json:"type"`
	Channels    []string           `json:"channels"`
	Variables   []TemplateVariable `json:"variables"`
	Subject     string             `json:"subject"`
	Title       string             `json:"title"`
	Message     string             `json:"message"`
	TargetRoles []string           `json:"targetRoles,omitempty"`
	Departments []string           `json:"departments,omitempty"`
	Scheduling  TemplateScheduling `json:"scheduling"`
	Version     int                `json:"version"`
	CreatedAt   time.Time          `json:"createdAt"`
	UpdatedAt   time.Time          `json:"updatedAt"`
}

// Variable returns the declared variable with the given name, or nil.
func (t *NotificationTemplate) Variable(name string) *TemplateVariable {
	for i := range t.Variables {
		if t.Variables[i].Name == name {
			return &t.Variables[i]
		}
	}
	return nil
}

// ValidVarType reports whether vt is a known template variable type.
func ValidVarType(vt string) bool {
	switch vt {
	case VarString, VarNumber, VarDate, VarBoolean, VarCurrency:
		return true
	}
	return false
}
