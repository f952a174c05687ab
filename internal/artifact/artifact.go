// Package artifact normalizes generated code and writes it into the sandbox.
package artifact

import (
	"strings"
)

const fence = "```"

// Artifact is generated code plus the filename it is validated and
// published under.
type Artifact struct {
	Filename string
	Content  string
}

// New returns an Artifact whose content has been normalized with tags.
func New(filename, raw string, tags []string) Artifact {
	return Artifact{Filename: filename, Content: Normalize(raw, tags)}
}

// Empty reports whether normalization left nothing to validate.
func (a Artifact) Empty() bool {
	return strings.TrimSpace(a.Content) == ""
}

// Normalize strips markdown decoration from generated code: surrounding
// whitespace and backticks, fence lines, prose ahead of the first fenced
// block, and a first line that is only a language tag. It repeats until the
// content stops changing, so Normalize(Normalize(s)) == Normalize(s).
// Non-empty results end with exactly one newline.
func Normalize(content string, tags []string) string {
	for {
		next := normalizeOnce(content, tags)
		if next == content {
			return next
		}
		content = next
	}
}

func normalizeOnce(s string, tags []string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.TrimSpace(s)

	// Prose before a fenced block: keep only the block body. Only a fence
	// that opens a line counts; backticks inside code are left alone.
	if i := lineFence(s); i > 0 {
		body := s[i+len(fence):]
		if nl := strings.IndexByte(body, '\n'); nl >= 0 {
			body = body[nl+1:]
		} else {
			body = ""
		}
		if j := lineFence(body); j >= 0 {
			body = body[:j]
		}
		s = body
	}

	s = strings.TrimSpace(strings.Trim(s, "`"))

	lines := strings.Split(s, "\n")
	kept := make([]string, 0, len(lines))
	for _, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), fence) {
			continue
		}
		kept = append(kept, line)
	}
	if len(kept) > 0 && isLanguageTag(kept[0], tags) {
		kept = kept[1:]
	}

	out := strings.TrimSpace(strings.Join(kept, "\n"))
	if out == "" {
		return ""
	}
	return out + "\n"
}

// lineFence returns the index of the first fence that starts a line, or -1.
func lineFence(s string) int {
	if strings.HasPrefix(s, fence) {
		return 0
	}
	if i := strings.Index(s, "\n"+fence); i >= 0 {
		return i + 1
	}
	return -1
}

func isLanguageTag(line string, tags []string) bool {
	line = strings.TrimSpace(line)
	for _, tag := range tags {
		if strings.EqualFold(line, tag) {
			return true
		}
	}
	return false
}
