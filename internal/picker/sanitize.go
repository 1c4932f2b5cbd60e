package picker

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/mattn/go-runewidth"
)

// ansiRE matches CSI, OSC, charset and other two-byte escape sequences.
var ansiRE = regexp.MustCompile(`\x1b(?:` +
	`\[[0-9;]*[A-Za-z]` +
	`|\].*?(?:\x1b\\|\x07)` +
	`|[()][A-B0-2]` +
	`|[#()*+\-./][A-Za-z0-9]` +
	`)`)

// Sanitize makes a stored value safe to draw: escape sequences are removed
// and invalid UTF-8 becomes U+FFFD.
func Sanitize(s string) string {
	s = ansiRE.ReplaceAllString(s, "")
	if utf8.ValidString(s) {
		return s
	}
	return strings.ToValidUTF8(s, "\uFFFD")
}

// Truncate shortens s to maxWidth display columns, keeping both ends around
// an ellipsis. Wide runes count as two columns.
func Truncate(s string, maxWidth int) string {
	if maxWidth <= 0 {
		return ""
	}
	if runewidth.StringWidth(s) <= maxWidth {
		return s
	}
	if maxWidth < 3 {
		return runewidth.Truncate(s, maxWidth, "")
	}

	avail := maxWidth - 1
	head := headByWidth(s, (avail+1)/2)
	tail := tailByWidth(s, avail/2)
	return head + "…" + tail
}

func headByWidth(s string, width int) string {
	used := 0
	for i, r := range s {
		w := runewidth.RuneWidth(r)
		if used+w > width {
			return s[:i]
		}
		used += w
	}
	return s
}

func tailByWidth(s string, width int) string {
	runes := []rune(s)
	used := 0
	i := len(runes)
	for i > 0 {
		w := runewidth.RuneWidth(runes[i-1])
		if used+w > width {
			break
		}
		used += w
		i--
	}
	return string(runes[i:])
}

// Pad right-pads s with spaces to width display columns.
func Pad(s string, width int) string {
	return runewidth.FillRight(s, width)
}
