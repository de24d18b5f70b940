// internal/template/validate.go
package template

import (
	"fmt"

	"notification-hub/internal/models"
)

// Warning codes produced by Validate.
const (
	WarnMissingRequired       = "MISSING_REQUIRED_VARIABLE"
	WarnUndeclaredPlaceholder = "UNDECLARED_PLACEHOLDER"
	WarnUnusedVariable        = "UNUSED_VARIABLE"
)

// Warning is one authoring-time diagnostic. Warnings never block rendering.
type Warning struct {
	Code     string `json:"code"`
	Variable string `json:"variable"`
	Message  string `json:"message"`
}

// Validate performs the dry validation used by the authoring UI: it reports
// required variables missing from vars, placeholders that reference no
// declared variable, and declared variables no template string uses.
func Validate(tmpl *models.NotificationTemplate, vars map[string]interface{}) []Warning {
	var warnings []Warning

	used := make(map[string]bool)
	for _, s := range []string{tmpl.Subject, tmpl.Title, tmpl.Message} {
		for _, match := range placeholderRe.FindAllStringSubmatch(s, -1) {
			used[match[1]] = true
		}
	}

	for _, v := range tmpl.Variables {
		if v.Required {
			if _, ok := vars[v.Name]; !ok && v.DefaultValue == nil {
				warnings = append(warnings, Warning{
					Code:     WarnMissingRequired,
					Variable: v.Name,
					Message:  fmt.Sprintf("required variable %q has no value and no default", v.Name),
				})
			}
		}
		if !used[v.Name] {
			warnings = append(warnings, Warning{
				Code:     WarnUnusedVariable,
				Variable: v.Name,
				Message:  fmt.Sprintf("declared variable %q is not referenced by any template string", v.Name),
			})
		}
	}

	for name := range used {
		if tmpl.Variable(name) == nil {
			warnings = append(warnings, Warning{
				Code:     WarnUndeclaredPlaceholder,
				Variable: name,
				Message:  fmt.Sprintf("placeholder {{%s}} references no declared variable", name),
			})
		}
	}

	return warnings
}
