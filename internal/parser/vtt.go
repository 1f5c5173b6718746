package parser

import (
	"regexp"
	"strconv"
	"strings"

	"youkb/internal/domain"
)

var cueIndexRe = regexp.MustCompile(`^\d+$`)

// parseVTT splits WEBVTT content into timed entries. The mandatory header
// line is stripped, blocks are separated by blank lines, and a block whose
// first line is a bare cue number has its timing on the second line.
// Malformed timestamps fall back to zero rather than dropping the block.
func parseVTT(content string) []domain.Entry {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	if !strings.HasPrefix(content, "WEBVTT") {
		return nil
	}
	if idx := strings.Index(content, "\n"); idx >= 0 {
		content = content[idx+1:]
	} else {
		return nil
	}

	var entries []domain.Entry
	for _, block := range strings.Split(content, "\n\n") {
		lines := nonBlankLines(block)
		if len(lines) == 0 {
			continue
		}
		timingLine := lines[0]
		textLines := lines[1:]
		if cueIndexRe.MatchString(timingLine) && len(lines) > 1 {
			timingLine = lines[1]
			textLines = lines[2:]
		}
		// A cue timing line carries a start/end pair. Blocks without one
		// (NOTE, STYLE, region metadata) are not transcript text.
		if !strings.Contains(timingLine, "-->") {
			continue
		}
		if len(textLines) == 0 {
			continue
		}
		start := parseTimestamp(strings.Fields(timingLine)[0])
		entries = append(entries, domain.Entry{
			StartSec: start,
			Text:     strings.Join(textLines, " "),
		})
	}
	return entries
}

// parseTimestamp converts "HH:MM:SS.mmm" or "MM:SS.mmm" to total seconds.
// Anything unparseable maps to zero.
func parseTimestamp(ts string) float64 {
	parts := strings.Split(ts, ":")
	if len(parts) != 2 && len(parts) != 3 {
		return 0
	}
	var total float64
	for _, p := range parts {
		v, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return 0
		}
		total = total*60 + v
	}
	return total
}

func nonBlankLines(block string) []string {
	var out []string
	for _, line := range strings.Split(block, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}
