// Package extract locates annotated comments (TODO, FIXME, ...) in source text.
package extract

import (
	"fmt"
	"regexp"
	"strings"
)

// DefaultTags is the closed annotation vocabulary.
var DefaultTags = []string{"TODO", "FIXME", "HACK", "XXX", "BUG", "NOTE"}

// Priority is derived from bang markers after the tag: "!" is high, "!!" urgent.
type Priority string

// Priority levels.
const (
	PriorityNone   Priority = ""
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// issueRe matches the first issue reference in a message: "#123" or "JIRA-456".
var issueRe = regexp.MustCompile(`#\d+|\b[A-Z]+-\d+\b`)

// commentIntroducers are tokens that mark the start of a comment when found
// anywhere before the tag on the same line.
var commentIntroducers = []string{"//", "#", "--", ";", "%", "/*", "(*", "{-", "<!--"}

// commentClosers are trailing block-comment terminators stripped from messages.
var commentClosers = []string{"*/", "-->", "*)", "-}"}

// Item is one extracted annotation.
type Item struct {
	File     string   `json:"file"`
	Line     int      `json:"line"` // 1-based
	Tag      string   `json:"tag"`
	Message  string   `json:"message"`
	Author   string   `json:"author,omitempty"`
	Issue    string   `json:"issue,omitempty"`
	Priority Priority `json:"priority,omitempty"`
}

// MatchKey is the diffing identity of an item: file, tag, and normalized
// message. Line numbers are deliberately excluded so items that merely shift
// lines are not reported as removed-then-added.
func (it Item) MatchKey() string {
	return it.File + "\x00" + it.Tag + "\x00" + strings.ToLower(strings.TrimSpace(it.Message))
}

// Pattern is a compiled matcher for a tag vocabulary. Construct it once and
// share it; it is safe for concurrent use.
type Pattern struct {
	re *regexp.Regexp
}

// NewPattern compiles a matcher for the given vocabulary. Matching is
// case-insensitive; a tag must stand alone as a word, optionally followed by
// a parenthesized author and bang priority markers, then a colon and message.
func NewPattern(tags []string) (*Pattern, error) {
	if len(tags) == 0 {
		return nil, fmt.Errorf("extract: empty tag vocabulary")
	}
	quoted := make([]string, len(tags))
	for i, tag := range tags {
		quoted[i] = regexp.QuoteMeta(tag)
	}
	re, err := regexp.Compile(`(?i)\b(` + strings.Join(quoted, "|") + `)\b(?:\(([^)]*)\))?(!{1,2})?\s*:\s*(.*)$`)
	if err != nil {
		return nil, fmt.Errorf("extract: compile pattern: %w", err)
	}
	return &Pattern{re: re}, nil
}

// Extract scans text line by line and returns every annotation found, at most
// one per line. A tag is only accepted when the line looks like a comment:
// either a comment introducer appears before the tag, or the line is a
// block-comment continuation starting with "*". This is a heuristic, not a
// lexer, so tags inside identifiers and string literals are rejected by the
// word-boundary and introducer checks rather than real parsing.
func Extract(text, file string, pat *Pattern) []Item {
	var items []Item
	for i, line := range strings.Split(text, "\n") {
		matches := pat.re.FindAllStringSubmatchIndex(line, -1)
		for _, m := range matches {
			if !inComment(line, m[0]) {
				continue
			}
			items = append(items, buildItem(line, m, file, i+1))
			break // one item per line
		}
	}
	return items
}

// inComment reports whether position idx on line falls after a comment
// introducer, or the line continues a block comment.
func inComment(line string, idx int) bool {
	prefix := line[:idx]
	for _, tok := range commentIntroducers {
		if strings.Contains(prefix, tok) {
			return true
		}
	}
	return strings.HasPrefix(strings.TrimLeft(line, " \t"), "*")
}

// buildItem assembles an Item from submatch indexes:
// 1=tag, 2=author, 3=bangs, 4=message.
func buildItem(line string, m []int, file string, lineNo int) Item {
	group := func(n int) string {
		if m[2*n] < 0 {
			return ""
		}
		return line[m[2*n]:m[2*n+1]]
	}

	msg := strings.TrimSpace(group(4))
	for _, closer := range commentClosers {
		if strings.HasSuffix(msg, closer) {
			msg = strings.TrimSpace(strings.TrimSuffix(msg, closer))
		}
	}

	priority := PriorityNone
	switch group(3) {
	case "!":
		priority = PriorityHigh
	case "!!":
		priority = PriorityUrgent
	}

	return Item{
		File:     file,
		Line:     lineNo,
		Tag:      strings.ToUpper(group(1)),
		Message:  msg,
		Author:   strings.TrimSpace(group(2)),
		Issue:    issueRe.FindString(msg),
		Priority: priority,
	}
}
