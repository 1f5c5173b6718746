package parser

import (
	"path/filepath"
	"strings"

	"youkb/internal/domain"
)

// Supported source-type tags.
const (
	TypeVTT      = "vtt"
	TypeText     = "txt"
	TypeMarkdown = "md"
)

// DetectType maps a file path to its source-type tag. The second return value
// is false for unsupported extensions; such files are skipped by ingestion.
func DetectType(path string) (string, bool) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".vtt":
		return TypeVTT, true
	case ".txt":
		return TypeText, true
	case ".md", ".markdown":
		return TypeMarkdown, true
	}
	return "", false
}

// Parse converts raw file content of the given source-type into an ordered
// sequence of entries. Malformed content yields an empty sequence, never an
// error: deciding whether an empty result is worth a warning is the caller's
// concern.
func Parse(fileType, content string) []domain.Entry {
	switch fileType {
	case TypeVTT:
		return parseVTT(content)
	case TypeText:
		return parseParagraphs(content)
	case TypeMarkdown:
		return parseMarkdown(content)
	}
	return nil
}
