package theme

import (
	"slices"
	"strings"
)

// Substitute replaces every ##key## token in text with the string value of
// key in params. Non-string values are skipped and substituted values are
// not scanned again.
func Substitute(text string, params map[string]any) string {
	return replacer(params).Replace(text)
}

func replacer(params map[string]any) *strings.Replacer {
	keys := make([]string, 0, len(params))
	for k, v := range params {
		if _, ok := v.(string); ok && k != "" {
			keys = append(keys, k)
		}
	}
	slices.Sort(keys)

	pairs := make([]string, 0, 2*len(keys))
	for _, k := range keys {
		pairs = append(pairs, "##"+k+"##", params[k].(string))
	}
	return strings.NewReplacer(pairs...)
}
