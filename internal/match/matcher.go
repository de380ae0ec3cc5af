package match

import (
	"fmt"
	"regexp"
	"strings"
)

// Matcher is a compiled pattern: either a regex translated from a glob, or
// the always-true matcher reserved for the bare "*" action/role wildcard.
// Either form may be negated with a leading "!" on the source pattern.
type Matcher struct {
	pattern string
	negate  bool
	always  bool
	re      *regexp.Regexp
}

// Pattern returns the original, uncompiled pattern string (including any
// leading "!"), for diagnostics.
func (m Matcher) Pattern() string { return m.pattern }

// Match reports whether s satisfies the compiled pattern.
func (m Matcher) Match(s string) bool {
	var matched bool
	switch {
	case m.always:
		matched = true
	case m.re != nil:
		matched = m.re.MatchString(s)
	}
	if m.negate {
		return !matched
	}
	return matched
}

// Option configures a single Compile call.
type Option func(*options)

type options struct {
	starAlwaysMatches bool
	deepMatchesEmpty  bool
}

// StarAlwaysMatches makes a bare "*" pattern (after stripping any "!")
// bypass glob compilation entirely and match every input. Used for the
// action and role fields, where "*" means "unconditional".
func StarAlwaysMatches() Option {
	return func(o *options) { o.starAlwaysMatches = true }
}

// DeepMatchesEmpty makes a segment-leading "**" match zero or more
// characters instead of the default one or more.
func DeepMatchesEmpty() Option {
	return func(o *options) { o.deepMatchesEmpty = true }
}

// Compile translates a glob pattern into a Matcher. A leading "!" negates
// the resulting matcher; the literal pattern text (including the "!") is
// retained on the returned Matcher for diagnostics.
func Compile(pattern string, opts ...Option) (Matcher, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	negate := false
	rest := pattern
	if strings.HasPrefix(rest, "!") {
		negate = true
		rest = rest[1:]
	}

	if o.starAlwaysMatches && rest == "*" {
		return Matcher{pattern: pattern, negate: negate, always: true}, nil
	}

	source, err := globToRegexSource(rest, o.deepMatchesEmpty)
	if err != nil {
		return Matcher{}, fmt.Errorf("match: compile %q: %w", pattern, err)
	}
	re, err := regexp.Compile("^" + source + "$")
	if err != nil {
		return Matcher{}, fmt.Errorf("match: compile %q: %w", pattern, err)
	}
	return Matcher{pattern: pattern, negate: negate, re: re}, nil
}

// globToRegexSource scans a glob pattern left to right and emits the
// equivalent (unanchored) regex source, per the token table:
//
//	.            literal dot
//	?            one char, not "/" and not "."
//	** (seg)     one or more chars (zero or more in deep-matches-empty mode),
//	             greedy-lazy, may include "/"
//	*  (seg)     zero or more non-"/" chars, not starting with "." or "/"
//	*  (elsewhere) zero or more non-"/" chars
//	other        literal
//
// "(seg)" means the token occurs at the start of the string or immediately
// after a "/".
func globToRegexSource(glob string, deepMatchesEmpty bool) (string, error) {
	runes := []rune(glob)
	var b strings.Builder
	atSegStart := true

	for i := 0; i < len(runes); i++ {
		c := runes[i]
		switch c {
		case '*':
			if atSegStart && i+1 < len(runes) && runes[i+1] == '*' {
				if deepMatchesEmpty {
					b.WriteString(`.*?`)
				} else {
					b.WriteString(`.+?`)
				}
				i++
				atSegStart = false
				continue
			}
			if atSegStart {
				// The segment may not begin with "." or "/". When the next
				// glob token is a literal "." or "/", an empty match would put
				// that character at the segment start, so at least one char
				// is required; otherwise the star may also match nothing.
				if i+1 < len(runes) && (runes[i+1] == '.' || runes[i+1] == '/') {
					b.WriteString(`[^/.][^/]*`)
				} else {
					b.WriteString(`(?:[^/.][^/]*)?`)
				}
			} else {
				b.WriteString(`[^/]*`)
			}
			atSegStart = false
		case '?':
			b.WriteString(`[^/.]`)
			atSegStart = false
		case '.':
			b.WriteString(`\.`)
			atSegStart = false
		case '/':
			b.WriteString(`/`)
			atSegStart = true
		default:
			b.WriteString(regexp.QuoteMeta(string(c)))
			atSegStart = false
		}
	}
	return b.String(), nil
}
