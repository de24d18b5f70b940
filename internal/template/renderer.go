// internal/template/renderer.go

// Package template renders notification templates by substituting named
// {{variable}} placeholders into subject/title/message strings. Rendering is
// total: missing values fall back to the declared default, then to the empty
// string. Placeholders are plain string substitution, never executable, and
// substituted values are not re-expanded.
package template

import (
	"fmt"
	"hash/fnv"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"notification-hub/internal/models"
)

var placeholderRe = regexp.MustCompile(`\{\{\s*([a-zA-Z0-9_.]+)\s*\}\}`)

// Rendered is the output of one render call.
type Rendered struct {
	Subject string `json:"subject"`
	Title   string `json:"title"`
	Message string `json:"message"`
}

// Renderer renders templates with memoization keyed by template identity,
// version and a hash of the variable bindings. Safe for concurrent use.
type Renderer struct {
	mu    sync.Mutex
	cache map[string]Rendered
}

// NewRenderer creates a Renderer with an empty memo cache.
func NewRenderer() *Renderer {
	return &Renderer{cache: make(map[string]Rendered)}
}

// Render resolves the template's subject, title and message against vars.
// It never fails; use Validate for authoring-time diagnostics.
func (r *Renderer) Render(tmpl *models.NotificationTemplate, vars map[string]interface{}) Rendered {
	key := memoKey(tmpl, vars)

	r.mu.Lock()
	if cached, ok := r.cache[key]; ok {
		r.mu.Unlock()
		return cached
	}
	r.mu.Unlock()

	out := Rendered{
		Subject: substitute(tmpl.Subject, tmpl, vars),
		Title:   substitute(tmpl.Title, tmpl, vars),
		Message: substitute(tmpl.Message, tmpl, vars),
	}

	r.mu.Lock()
	r.cache[key] = out
	r.mu.Unlock()
	return out
}

// Render is the memo-free form used where no Renderer instance is at hand.
func Render(tmpl *models.NotificationTemplate, vars map[string]interface{}) Rendered {
	return Rendered{
		Subject: substitute(tmpl.Subject, tmpl, vars),
		Title:   substitute(tmpl.Title, tmpl, vars),
		Message: substitute(tmpl.Message, tmpl, vars),
	}
}

// substitute replaces every placeholder in s in a single pass over the
// original string, so values containing "{{" are never expanded again.
func substitute(s string, tmpl *models.NotificationTemplate, vars map[string]interface{}) string {
	if s == "" {
		return ""
	}
	return placeholderRe.ReplaceAllStringFunc(s, func(match string) string {
		name := placeholderRe.FindStringSubmatch(match)[1]

		decl := tmpl.Variable(name)
		value, ok := vars[name]
		if !ok && decl != nil && decl.DefaultValue != nil {
			value, ok = decl.DefaultValue, true
		}
		if !ok || value == nil {
			return ""
		}

		varType := models.VarString
		if decl != nil {
			varType = decl.Type
		}
		return coerce(value, varType)
	})
}

// coerce formats a value according to its declared variable type.
func coerce(value interface{}, varType string) string {
	switch varType {
	case models.VarCurrency:
		if f, ok := toFloat(value); ok {
			return formatCurrency(f)
		}
	case models.VarDate:
		if t, ok := toTime(value); ok {
			return t.Format("Jan 2, 2006")
		}
	case models.VarBoolean:
		if b, ok := toBool(value); ok {
			if b {
				return "Yes"
			}
			return "No"
		}
	case models.VarNumber:
		if f, ok := toFloat(value); ok {
			if f == float64(int64(f)) {
				return strconv.FormatInt(int64(f), 10)
			}
			return strconv.FormatFloat(f, 'f', -1, 64)
		}
	}
	return fmt.Sprintf("%v", value)
}

// formatCurrency renders a fixed-currency monetary string with thousands
// grouping, e.g. 1234.5 -> "$1,234.50".
func formatCurrency(f float64) string {
	neg := f < 0
	if neg {
		f = -f
	}
	whole := strconv.FormatFloat(f, 'f', 2, 64)
	dot := strings.IndexByte(whole, '.')
	intPart, fracPart := whole[:dot], whole[dot:]

	var b strings.Builder
	lead := len(intPart) % 3
	if lead > 0 {
		b.WriteString(intPart[:lead])
	}
	for i := lead; i < len(intPart); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(intPart[i : i+3])
	}

	sign := ""
	if neg {
		sign = "-"
	}
	return sign + "$" + b.String() + fracPart
}

func toFloat(value interface{}) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case string:
		f, err := strconv.ParseFloat(v, 64)
		return f, err == nil
	}
	return 0, false
}

func toTime(value interface{}) (time.Time, bool) {
	switch v := value.(type) {
	case time.Time:
		return v, true
	case *time.Time:
		if v != nil {
			return *v, true
		}
	case string:
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			return t, true
		}
		if t, err := time.Parse("2006-01-02", v); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func toBool(value interface{}) (bool, bool) {
	switch v := value.(type) {
	case bool:
		return v, true
	case string:
		b, err := strconv.ParseBool(v)
		return b, err == nil
	}
	return false, false
}

// memoKey combines template identity, version and a hash of the bindings.
// Map iteration order is randomized, so keys are hashed in sorted order.
func memoKey(tmpl *models.NotificationTemplate, vars map[string]interface{}) string {
	names := make([]string, 0, len(vars))
	for name := range vars {
		names = append(names, name)
	}
	sort.Strings(names)

	h := fnv.New64a()
	for _, name := range names {
		fmt.Fprintf(h, "%s=%v;", name, vars[name])
	}
	return fmt.Sprintf("%s:%d:%x", tmpl.ID, tmpl.Version, h.Sum64())
}
