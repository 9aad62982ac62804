package scanner

import (
	"fmt"
	"regexp"
	"strings"
)

// DefaultExcludeDirs are directory names skipped by default.
var DefaultExcludeDirs = []string{".git", ".hg", ".svn", "node_modules", "target", "vendor", "dist", "build"}

// Policy decides which paths a scan ignores. Directory names are matched as
// exact path components; patterns are regular expressions matched against the
// full slash-relative path. The same policy backs the walker and the live
// index so both agree on what is in scope.
type Policy struct {
	dirs     map[string]struct{}
	dirNames []string
	patterns []*regexp.Regexp
	sources  []string
}

// NewPolicy compiles an exclusion policy. An invalid pattern is a
// configuration error, not something to skip silently.
func NewPolicy(excludeDirs, excludePatterns []string) (*Policy, error) {
	p := &Policy{
		dirs:     make(map[string]struct{}, len(excludeDirs)),
		dirNames: append([]string(nil), excludeDirs...),
		sources:  append([]string(nil), excludePatterns...),
	}
	for _, d := range excludeDirs {
		p.dirs[d] = struct{}{}
	}
	for _, src := range excludePatterns {
		re, err := regexp.Compile(src)
		if err != nil {
			return nil, fmt.Errorf("scanner: compile exclude pattern %q: %w", src, err)
		}
		p.patterns = append(p.patterns, re)
	}
	return p, nil
}

// ExcludesDir reports whether a single directory name is excluded.
func (p *Policy) ExcludesDir(name string) bool {
	_, ok := p.dirs[name]
	return ok
}

// Excludes reports whether a slash-relative path is excluded, either because
// one of its components is an excluded directory name or because a pattern
// matches the full path.
func (p *Policy) Excludes(rel string) bool {
	for _, part := range strings.Split(rel, "/") {
		if _, ok := p.dirs[part]; ok {
			return true
		}
	}
	for _, re := range p.patterns {
		if re.MatchString(rel) {
			return true
		}
	}
	return false
}

// ExcludeDirs returns the configured directory names, in order.
func (p *Policy) ExcludeDirs() []string {
	return p.dirNames
}

// ExcludePatterns returns the configured pattern sources, in order.
func (p *Policy) ExcludePatterns() []string {
	return p.sources
}
