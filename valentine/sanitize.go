package valentine

import (
	"html/template"

	"github.com/microcosm-cc/bluemonday"
)

// subtitlePolicy allows inline emphasis and line breaks in configured copy.
var subtitlePolicy = func() *bluemonday.Policy {
	p := bluemonday.NewPolicy()
	p.AllowElements("b", "strong", "i", "em", "br", "span", "small")
	p.AllowAttrs("class").OnElements("span")
	return p
}()

// sanitizeHTML returns configured copy safe to render unescaped.
func sanitizeHTML(s string) template.HTML {
	return template.HTML(subtitlePolicy.Sanitize(s))
}
