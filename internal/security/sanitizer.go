// Package security holds input hygiene helpers shared by the services.
package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// TextSanitizer turns user-submitted text into plain text.
//
// Item descriptions and message bodies are shown back to other users. Pages
// are rendered with html/template, which escapes on output, but stored text
// also leaves through the JSON feeds, so markup is stripped before it is
// written. bluemonday's strict policy removes every tag (and the contents of
// script/style); the result is entity-escaped, so we unescape it again to store
// what the user actually typed ("Tom & Jerry", not "Tom &amp; Jerry").
type TextSanitizer struct {
	policy *bluemonday.Policy
}

func NewTextSanitizer() *TextSanitizer {
	return &TextSanitizer{policy: bluemonday.StrictPolicy()}
}

// maxPasses bounds Clean's sanitize/unescape loop. Every pass that changes
// the text removes a tag or decodes an entity, so real input settles in two
// or three.
const maxPasses = 8

// Clean strips markup and surrounding whitespace.
//
// Unescaping can turn "&lt;b&gt;" into a live tag, so sanitize and unescape
// repeat until the text stops changing. If it has not settled after
// maxPasses, the last sanitized form is returned still entity-escaped.
// Clean(Clean(s)) == Clean(s).
func (s *TextSanitizer) Clean(input string) string {
	if input == "" {
		return ""
	}

	text := input
	for i := 0; i < maxPasses; i++ {
		sanitized := s.policy.Sanitize(text)
		next := html.UnescapeString(sanitized)
		if next == text {
			return strings.TrimSpace(next)
		}
		text = next
	}
	return strings.TrimSpace(s.policy.Sanitize(text))
}
