// Package markup checks the limited HTML allowed in comment text. Accepted
// text is stored exactly as submitted.
package markup

import (
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// AllowedTags are the only HTML tags a comment may contain
var AllowedTags = []string{"a", "code", "i", "strong"}

// LinkSchemes are the URL schemes accepted in <a href>
var LinkSchemes = []string{"http", "https", "mailto"}

var (
	tagPattern  = regexp.MustCompile(`(?i)<(/?)([a-z]+)(\s+[^>]*)?>`)
	attrPattern = regexp.MustCompile(`([a-zA-Z_:][-a-zA-Z0-9_:.]*)(?:\s*=\s*(?:"[^"]*"|'[^']*'|[^\s"'>]+))?`)
)

// policy only judges single tags; its output is never stored
var policy = newPolicy()

func newPolicy() *bluemonday.Policy {
	p := bluemonday.NewPolicy()
	p.AllowElements("code", "i", "strong")
	p.RequireParseableURLs(true)
	p.AllowURLSchemes(LinkSchemes...)
	p.AllowAttrs("href", "title").OnElements("a")
	return p
}

// Check returns an error describing the first disallowed tag, attribute or
// link, or the first unbalanced tag
func Check(text string) error {
	var stack []string
	for _, m := range tagPattern.FindAllStringSubmatch(text, -1) {
		closing := m[1] == "/"
		tag := strings.ToLower(m[2])

		if !slices.Contains(AllowedTags, tag) {
			return fmt.Errorf("tag <%s> not allowed. Use only %s.", tag, strings.Join(AllowedTags, ", "))
		}
		if !closing {
			if err := checkAttributes(m[0], tag, m[3]); err != nil {
				return err
			}
			stack = append(stack, tag)
			continue
		}
		if len(stack) == 0 || stack[len(stack)-1] != tag {
			return fmt.Errorf("tag </%s> unclosed.", tag)
		}
		stack = stack[:len(stack)-1]
	}
	if len(stack) > 0 {
		return fmt.Errorf("tag <%s> unclosed.", stack[len(stack)-1])
	}
	return nil
}

// checkAttributes runs one opening tag through the policy and reports the
// first attribute the policy would drop
func checkAttributes(raw, tag, attrs string) error {
	names := attrPattern.FindAllStringSubmatch(attrs, -1)
	if len(names) == 0 {
		return nil
	}

	kept := policy.Sanitize(raw + "</" + tag + ">")
	for _, n := range names {
		name := strings.ToLower(n[1])
		if strings.Contains(kept, " "+name+"=") {
			continue
		}
		if tag == "a" && name == "href" {
			return fmt.Errorf("link in <a> not allowed. Use only %s URLs.", strings.Join(LinkSchemes, ", "))
		}
		return fmt.Errorf("attribute %s on <%s> not allowed.", name, tag)
	}
	return nil
}
