package ingest

import (
	"path/filepath"
	"regexp"
	"strings"
)

var (
	videoIDRe    = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)
	langSuffixRe = regexp.MustCompile(`^\.[a-z]{2,3}(-[A-Za-z]{2,4})?$`)
)

// sourceVideoID derives a video identifier from a subtitle file name.
// Downloaders name subtitle files either after the video ID itself or as
// "Title [ID].lang.vtt"; the trailing 11-character token wins when it looks
// like an ID, otherwise the whole stem is the identifier.
func sourceVideoID(path string) string {
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	if ext := filepath.Ext(stem); langSuffixRe.MatchString(ext) {
		stem = strings.TrimSuffix(stem, ext)
	}
	if i := strings.LastIndex(stem, "["); i >= 0 && strings.HasSuffix(stem, "]") {
		if tok := stem[i+1 : len(stem)-1]; videoIDRe.MatchString(tok) {
			return tok
		}
	}
	if videoIDRe.MatchString(stem) {
		return stem
	}
	if len(stem) > 11 {
		tok := stem[len(stem)-11:]
		if videoIDRe.MatchString(tok) && stem[len(stem)-12] == ' ' {
			return tok
		}
	}
	return stem
}
