package session

import (
	"path"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const fallbackBaseName = "document"

// downloadName derives "<base><suffix>.pdf" from an uploaded file name.
// Directories and a trailing .pdf are stripped, the base is put in NFC and
// characters unsafe in file names are dropped.
func downloadName(upload, suffix string) string {
	base := path.Base(strings.ReplaceAll(upload, `\`, "/"))
	if ext := path.Ext(base); strings.EqualFold(ext, ".pdf") {
		base = strings.TrimSuffix(base, ext)
	}

	t := transform.Chain(norm.NFC, runes.Remove(runes.Predicate(unsafeInName)))
	if clean, _, err := transform.String(t, base); err == nil {
		base = clean
	}
	base = strings.TrimSpace(base)
	if base == "" || base == "." || base == "/" {
		base = fallbackBaseName
	}
	return base + suffix + ".pdf"
}

func unsafeInName(r rune) bool {
	if unicode.IsControl(r) {
		return true
	}
	switch r {
	case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
		return true
	}
	return false
}
