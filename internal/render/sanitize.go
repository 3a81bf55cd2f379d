// Package render turns model replies, which are HTML fragments, into
// something safe to show: sanitized markup, styled terminal text, or
// plain text for read-aloud.
package render

import (
	"sync"

	"github.com/microcosm-cc/bluemonday"
)

var (
	policyOnce sync.Once
	policy     *bluemonday.Policy
)

// replyPolicy allows the formatting a tutor reply uses (headings,
// paragraphs, emphasis, lists, quotes, code and links) and nothing else.
// Inline styles and scripts are dropped.
func replyPolicy() *bluemonday.Policy {
	policyOnce.Do(func() {
		p := bluemonday.NewPolicy()
		p.AllowElements("h1", "h2", "h3", "h4", "h5", "h6",
			"p", "br", "hr", "div", "span",
			"strong", "b", "em", "i", "u", "mark", "small",
			"ul", "ol", "li", "blockquote", "pre", "code")
		p.AllowStandardURLs()
		p.AllowAttrs("href").OnElements("a")
		p.RequireNoFollowOnLinks(true)
		policy = p
	})
	return policy
}

// Sanitize removes anything outside the reply allow-list from untrusted
// markup, including raw terminal control sequences.
func Sanitize(markup string) string {
	return StripControls(replyPolicy().Sanitize(markup))
}
