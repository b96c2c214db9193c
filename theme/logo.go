package theme

import (
	"encoding/json"
	"html"
	"strconv"
)

// Default logo dimensions.
const (
	DefaultLogoWidth  = "100"
	DefaultLogoHeight = "100"
)

// Logo is the structured logo of a template, with loosely typed fields
// coerced to strings.
type Logo struct {
	Path   string
	Width  string
	Height string
}

// ParseLogo coerces a stored logo. Width and height accept strings and
// numbers; missing or mistyped values fall back to the defaults and a
// missing path becomes empty.
func ParseLogo(raw map[string]any) Logo {
	l := Logo{Width: DefaultLogoWidth, Height: DefaultLogoHeight}
	if p, ok := raw["path"].(string); ok {
		l.Path = p
	}
	if w, ok := dimension(raw["width"]); ok {
		l.Width = w
	}
	if h, ok := dimension(raw["height"]); ok {
		l.Height = h
	}
	return l
}

// Tag returns the inline <img> tag of the logo.
func (l Logo) Tag() string {
	return `<img src="` + html.EscapeString(l.Path) +
		`" width="` + html.EscapeString(l.Width) +
		`" height="` + html.EscapeString(l.Height) + `" />`
}

func dimension(v any) (string, bool) {
	switch n := v.(type) {
	case string:
		return n, n != ""
	case float64:
		return strconv.FormatFloat(n, 'f', -1, 64), true
	case float32:
		return strconv.FormatFloat(float64(n), 'f', -1, 32), true
	case int:
		return strconv.Itoa(n), true
	case int32:
		return strconv.FormatInt(int64(n), 10), true
	case int64:
		return strconv.FormatInt(n, 10), true
	case json.Number:
		return n.String(), true
	}
	return "", false
}
