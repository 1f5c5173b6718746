package parser

import (
	"regexp"
	"strings"

	"youkb/internal/domain"
)

var (
	paragraphRe = regexp.MustCompile(`\n\s*\n`)
	headingRe   = regexp.MustCompile(`(?m)^#{1,6}\s+`)
)

// parseParagraphs splits plain text on blank-line boundaries. Every paragraph
// becomes one entry at offset zero.
func parseParagraphs(content string) []domain.Entry {
	var entries []domain.Entry
	for _, para := range paragraphRe.Split(content, -1) {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		entries = append(entries, domain.Entry{Text: para})
	}
	return entries
}

// parseMarkdown splits structured text on heading-marker lines; each section
// entry carries its heading text prefixed to the body. Content without any
// headings degrades to paragraph splitting.
func parseMarkdown(content string) []domain.Entry {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	if !headingRe.MatchString(content) {
		return parseParagraphs(content)
	}

	var entries []domain.Entry
	var section []string
	flush := func() {
		text := strings.TrimSpace(strings.Join(section, "\n"))
		if text != "" {
			entries = append(entries, domain.Entry{Text: text})
		}
		section = section[:0]
	}
	for _, line := range strings.Split(content, "\n") {
		if headingRe.MatchString(line) {
			flush()
			section = append(section, strings.TrimSpace(strings.TrimLeft(line, "# ")))
			continue
		}
		section = append(section, line)
	}
	flush()
	return entries
}
