// Package routeclass maps request paths to route categories using
// path-to-regexp style patterns such as "/dashboard(.*)" or "/dashboard/:slug".
package routeclass

import (
	"fmt"
	"regexp"
	"strings"
)

// Pattern is one compiled route pattern.
//
// Supported syntax:
//
//	/literal      matched exactly
//	:name         one path segment, captured under name
//	( ... )       raw regular expression group, e.g. (.*)
//
// A trailing slash on the request path is tolerated. Matching ignores case.
type Pattern struct {
	src    string
	re     *regexp.Regexp
	params []string
}

// CompilePattern compiles src into an anchored regular expression.
func CompilePattern(src string) (*Pattern, error) {
	src = strings.TrimSpace(src)
	if !strings.HasPrefix(src, "/") {
		return nil, fmt.Errorf("route pattern %q must start with /", src)
	}

	var (
		b      strings.Builder
		params []string
	)
	b.WriteString("(?i)^")
	for i := 0; i < len(src); {
		switch c := src[i]; {
		case c == '(':
			end, err := closingParen(src, i)
			if err != nil {
				return nil, err
			}
			b.WriteString("(?:")
			b.WriteString(src[i+1 : end])
			b.WriteString(")")
			i = end + 1
		case c == ':' && i+1 < len(src) && isNameByte(src[i+1]):
			j := i + 1
			for j < len(src) && isNameByte(src[j]) {
				j++
			}
			name := src[i+1 : j]
			params = append(params, name)
			fmt.Fprintf(&b, "(?P<%s>[^/]+)", name)
			i = j
		default:
			b.WriteString(regexp.QuoteMeta(string(c)))
			i++
		}
	}
	if src != "/" && !strings.HasSuffix(src, "/") {
		b.WriteString("/?")
	}
	b.WriteString("$")

	re, err := regexp.Compile(b.String())
	if err != nil {
		return nil, fmt.Errorf("route pattern %q: %w", src, err)
	}
	return &Pattern{src: src, re: re, params: params}, nil
}

// MustCompilePattern is CompilePattern for package-level presets.
func MustCompilePattern(src string) *Pattern {
	p, err := CompilePattern(src)
	if err != nil {
		panic(err)
	}
	return p
}

// CompilePatterns compiles every entry, skipping blanks.
func CompilePatterns(srcs []string) ([]*Pattern, error) {
	out := make([]*Pattern, 0, len(srcs))
	for _, s := range srcs {
		if strings.TrimSpace(s) == "" {
			continue
		}
		p, err := CompilePattern(s)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// String returns the source pattern.
func (p *Pattern) String() string { return p.src }

// Matches reports whether path satisfies the pattern.
func (p *Pattern) Matches(path string) bool {
	return p.re.MatchString(path)
}

// Params returns the named segments captured from path, and whether it matched.
func (p *Pattern) Params(path string) (map[string]string, bool) {
	m := p.re.FindStringSubmatch(path)
	if m == nil {
		return nil, false
	}
	out := make(map[string]string, len(p.params))
	for _, name := range p.params {
		out[name] = m[p.re.SubexpIndex(name)]
	}
	return out, true
}

// MatchAny reports whether any pattern matches path.
func MatchAny(patterns []*Pattern, path string) bool {
	for _, p := range patterns {
		if p.Matches(path) {
			return true
		}
	}
	return false
}

func closingParen(src string, open int) (int, error) {
	depth := 0
	for i := open; i < len(src); i++ {
		switch src[i] {
		case '\\':
			i++
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return i, nil
			}
		}
	}
	return 0, fmt.Errorf("route pattern %q: unbalanced parenthesis", src)
}

func isNameByte(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}
