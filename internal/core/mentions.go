package core

import (
	"regexp"
	"unicode"
	"unicode/utf8"
)

var mentionRe = regexp.MustCompile(`@([A-Za-z0-9_-]+)`)

// ParseMentions returns mention targets without the @ prefix.
// Duplicates are removed, order and case are preserved.
func ParseMentions(body string) []string {
	matches := mentionRe.FindAllStringSubmatchIndex(body, -1)
	mentions := make([]string, 0, len(matches))
	seen := make(map[string]struct{}, len(matches))

	for _, match := range matches {
		if len(match) < 4 {
			continue
		}
		start := match[0]
		if start > 0 {
			prev, _ := utf8.DecodeLastRuneInString(body[:start])
			if unicode.IsLetter(prev) || unicode.IsDigit(prev) {
				continue
			}
		}

		name := body[match[2]:match[3]]
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		mentions = append(mentions, name)
	}

	return mentions
}

// HasMentions reports whether body contains at least one @mention token.
func HasMentions(body string) bool {
	return len(ParseMentions(body)) > 0
}
