package businessflow

import "regexp"

var placeholderPattern = regexp.MustCompile(`\{\{(\w+)\}\}`)

// RenderTemplate replaces every {{field}} with its value; unknown fields become empty
func RenderTemplate(tpl string, fields map[string]string) string {
	return placeholderPattern.ReplaceAllStringFunc(tpl, func(token string) string {
		key := placeholderPattern.FindStringSubmatch(token)[1]
		return fields[key]
	})
}
