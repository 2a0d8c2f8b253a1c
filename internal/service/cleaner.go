package service

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/cloo-solutions/studyrag/internal/domain"
	"golang.org/x/text/unicode/norm"
)

// CleanerPolicy is the tunable pattern data behind PageCleaner. Patterns are
// RE2 expressions; matching is case-insensitive.
type CleanerPolicy struct {
	// MinPageChars rejects pages whose cleaned text is shorter than this.
	MinPageChars int
	// BoilerplateHeaders name section headings. A line holding only such a
	// heading, optionally numbered or followed by a colon, is cut together
	// with everything after it on the same page.
	BoilerplateHeaders []string
	// IrrelevantPatterns reject the whole page when found in its text.
	IrrelevantPatterns []string
}

// DefaultCleanerPolicy returns the policy used when no policy file is configured.
func DefaultCleanerPolicy() CleanerPolicy {
	return CleanerPolicy{
		MinPageChars: 120,
		BoilerplateHeaders: []string{
			`table\s+of\s+contents`,
			`contents`,
			`acknowledge?ments?`,
			`certificate`,
			`index`,
			`references`,
			`bibliography`,
			`content\s+organi[sz]ation`,
		},
		IrrelevantPatterns: []string{
			`(?m)^[ \t]*acknowledge?ments?[ \t]*:?[ \t]*$`,
			`(?m)^[ \t]*certificate[ \t]*:?[ \t]*$`,
			`\btable\s+of\s+contents\b`,
			`(?m)^\s*(?:record|index)\s*$`,
			`\bsignature\s*(?:of\b|:)`,
			`\bstudent(?:'s)?\s+name\b`,
			`\bguide(?:'s)?\s+name\b`,
			`(?m)^\s*date\s*:`,
		},
	}
}

var (
	blankLinesPattern    = regexp.MustCompile(`\n[ \t]*\n(?:[ \t]*\n)+`)
	pageTokenPattern     = regexp.MustCompile(`(?i)\bpage\s+\d+(?:\s+of\s+\d+)?\b`)
	bracketMarkerPattern = regexp.MustCompile(`(?i)\[\s*(?:page\s*)?\d+\s*\]`)
	disallowedPattern    = regexp.MustCompile(`[^\p{L}\p{N}_\s.,;:()'%\-]`)
	whitespacePattern    = regexp.MustCompile(`\s+`)
)

// PageCleaner strips per-page noise from extracted text and rejects pages
// that carry no study content. It is safe for concurrent use.
type PageCleaner struct {
	minChars    int
	boilerplate *regexp.Regexp
	irrelevant  []*regexp.Regexp
}

// NewPageCleaner compiles a cleaner from policy data.
func NewPageCleaner(policy CleanerPolicy) (*PageCleaner, error) {
	c := &PageCleaner{minChars: policy.MinPageChars}
	if c.minChars < 0 {
		c.minChars = 0
	}

	if len(policy.BoilerplateHeaders) > 0 {
		expr := `(?im)^[ \t]*(?:\d+[.)]?[ \t]+)?(?:` + strings.Join(policy.BoilerplateHeaders, "|") + `)[ \t]*:?[ \t]*$`
		re, err := regexp.Compile(expr)
		if err != nil {
			return nil, fmt.Errorf("invalid boilerplate header pattern: %w", err)
		}
		c.boilerplate = re
	}

	for _, p := range policy.IrrelevantPatterns {
		re, err := regexp.Compile(`(?i)` + p)
		if err != nil {
			return nil, fmt.Errorf("invalid irrelevance pattern %q: %w", p, err)
		}
		c.irrelevant = append(c.irrelevant, re)
	}

	return c, nil
}

// Clean returns the cleaned page text and whether the page should be kept.
// It never fails; a rejected page must simply be skipped by the caller.
func (c *PageCleaner) Clean(raw string) (string, bool) {
	text := norm.NFKC.String(raw)
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	for _, re := range c.irrelevant {
		if re.MatchString(text) {
			return "", false
		}
	}

	text = blankLinesPattern.ReplaceAllString(text, "\n\n")
	text = bracketMarkerPattern.ReplaceAllString(text, " ")
	text = pageTokenPattern.ReplaceAllString(text, " ")

	if c.boilerplate != nil {
		if loc := c.boilerplate.FindStringIndex(text); loc != nil {
			text = text[:loc[0]]
		}
	}

	text = disallowedPattern.ReplaceAllString(text, "")
	text = strings.TrimSpace(whitespacePattern.ReplaceAllString(text, " "))

	if text == "" || utf8.RuneCountInString(text) < c.minChars {
		return "", false
	}
	return text, true
}

// CleanPages cleans every page and keeps the accepted ones in page order.
func (c *PageCleaner) CleanPages(pages []domain.RawPage) []domain.RawPage {
	out := make([]domain.RawPage, 0, len(pages))
	for _, p := range pages {
		text, ok := c.Clean(p.Text)
		if !ok {
			continue
		}
		out = append(out, domain.RawPage{Number: p.Number, Text: text})
	}
	return out
}
