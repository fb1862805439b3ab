package utils

import (
	"html/template"

	"github.com/microcosm-cc/bluemonday"
)

var sanitizer = bluemonday.UGCPolicy()

// Sanitize cleans HTML content to prevent XSS attacks.
func Sanitize(input string) string {
	return sanitizer.Sanitize(input)
}

// SafeHTML sanitizes user content and marks the result as trusted for html/template.
// Post bodies are stored as written and pass through here only when rendered.
func SafeHTML(input string) template.HTML {
	return template.HTML(Sanitize(input))
}
