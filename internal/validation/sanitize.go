package validation

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var (
	contentPolicy = bluemonday.UGCPolicy()
	titlePolicy   = bluemonday.StrictPolicy()
)

// maxDecodeRounds bounds entity decoding of nested encodings like &amp;lt;.
const maxDecodeRounds = 4

// decodeEntities unescapes val until it stops changing so encoded markup
// reaches the policy as markup.
func decodeEntities(val string) string {
	for range maxDecodeRounds {
		next := html.UnescapeString(val)
		if next == val {
			break
		}
		val = next
	}
	return val
}

// SanitizeContent returns val as safe HTML. Text stays entity-escaped.
func SanitizeContent(val string) string {
	return strings.TrimSpace(contentPolicy.Sanitize(decodeEntities(val)))
}

// SanitizeTitle strips all markup and returns plain text.
func SanitizeTitle(val string) string {
	return strings.TrimSpace(html.UnescapeString(titlePolicy.Sanitize(decodeEntities(val))))
}
