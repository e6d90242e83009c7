// Package filter implements glob-based exclude patterns for the mirror
// walk. A pattern containing a slash is matched against the whole
// slash-separated relative path; otherwise it is matched against the
// basename (and any path suffix), in the rsync tradition.
package filter

import (
	"fmt"
	"path"
	"regexp"
	"strings"
)

// Chain holds an ordered list of compiled exclude patterns.
type Chain struct {
	patterns []*compiledPattern
}

// NewChain creates an empty chain.
func NewChain() *Chain {
	return &Chain{}
}

// Add compiles pattern and appends it to the chain.
func (c *Chain) Add(pattern string) error {
	cp, err := compilePattern(pattern)
	if err != nil {
		return fmt.Errorf("exclude pattern %q: %w", pattern, err)
	}
	c.patterns = append(c.patterns, cp)
	return nil
}

// Empty reports whether the chain has no patterns.
func (c *Chain) Empty() bool {
	return c == nil || len(c.patterns) == 0
}

// Excluded reports whether the slash-separated relative path matches any
// pattern in the chain.
func (c *Chain) Excluded(relPath string, isDir bool) bool {
	if c == nil {
		return false
	}
	relPath = path.Clean(strings.TrimPrefix(relPath, "/"))
	for _, cp := range c.patterns {
		if cp.match(relPath, isDir) {
			return true
		}
	}
	return false
}

// compiledPattern is a compiled glob pattern that can match paths.
type compiledPattern struct {
	re       *regexp.Regexp
	original string
	anchored bool // pattern contains a /, matched from the path root
	dirOnly  bool // pattern ends with /, matches directories only
}

func compilePattern(pattern string) (*compiledPattern, error) {
	cp := &compiledPattern{original: pattern}

	if strings.HasSuffix(pattern, "/") {
		cp.dirOnly = true
		pattern = strings.TrimSuffix(pattern, "/")
	}
	if strings.HasPrefix(pattern, "/") {
		cp.anchored = true
		pattern = strings.TrimPrefix(pattern, "/")
	} else if strings.Contains(pattern, "/") {
		cp.anchored = true
	}

	reStr := globToRegex(pattern)
	if cp.anchored {
		reStr = "^" + reStr + "$"
	} else {
		reStr = "(^|/)" + reStr + "$"
	}

	re, err := regexp.Compile(reStr)
	if err != nil {
		return nil, err
	}
	cp.re = re
	return cp, nil
}

func (cp *compiledPattern) match(relPath string, isDir bool) bool {
	if cp.dirOnly && !isDir {
		return false
	}
	return cp.re.MatchString(relPath)
}

// globToRegex converts a glob pattern to a regex string. `*` stops at path
// separators, `**` does not, `?` matches one non-separator character.
func globToRegex(pattern string) string {
	var b strings.Builder
	i := 0
	for i < len(pattern) {
		c := pattern[i]
		switch c {
		case '*':
			if i+1 < len(pattern) && pattern[i+1] == '*' {
				if i+2 < len(pattern) && pattern[i+2] == '/' {
					b.WriteString("(.*/)?")
					i += 3
				} else {
					b.WriteString(".*")
					i += 2
				}
			} else {
				b.WriteString("[^/]*")
				i++
			}
		case '?':
			b.WriteString("[^/]")
			i++
		case '[':
			j := i + 1
			if j < len(pattern) && pattern[j] == '!' {
				j++
			}
			if j < len(pattern) && pattern[j] == ']' {
				j++
			}
			for j < len(pattern) && pattern[j] != ']' {
				j++
			}
			if j < len(pattern) {
				cls := pattern[i+1 : j]
				if strings.HasPrefix(cls, "!") {
					cls = "^" + cls[1:]
				}
				b.WriteString("[" + cls + "]")
				i = j + 1
			} else {
				b.WriteString(regexp.QuoteMeta(string(c)))
				i++
			}
		default:
			b.WriteString(regexp.QuoteMeta(string(c)))
			i++
		}
	}
	return b.String()
}
