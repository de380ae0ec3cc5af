package policy

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strings"
)

// RuleSpec is the raw, uncompiled form of a parsed "rule" line.
type RuleSpec struct {
	Permission string
	Actions    []string
	Roles      []string
	Resources  []string
}

// MemberSpec is the raw form of a parsed "member" line.
type MemberSpec struct {
	Roles   []string
	Members []string
}

// UserSpec is the raw form of a parsed "user" line.
type UserSpec struct {
	Users  []string
	Groups []string
}

// PasswordSpec is the raw form of a parsed "password" line.
type PasswordSpec struct {
	Username string
	Password string
}

// ParsedText is the accumulated result of scanning a text source that may
// freely mix all four line grammars.
type ParsedText struct {
	Rules     []RuleSpec
	Members   []MemberSpec
	Users     []UserSpec
	Passwords []PasswordSpec
}

var commaSpacingRe = regexp.MustCompile(`\s*,\s*`)

// tokenizeLine strips a trailing "#" comment, trims the result, collapses
// whitespace around commas so that a comma-separated field survives a
// single strings.Fields split undisturbed, and splits on remaining
// whitespace. It returns nil for a blank or comment-only line.
func tokenizeLine(line string) []string {
	if idx := strings.IndexByte(line, '#'); idx >= 0 {
		line = line[:idx]
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}
	line = commaSpacingRe.ReplaceAllString(line, ",")
	return strings.Fields(line)
}

// splitCommaList splits an already-comma-normalized field into its
// constituent names, dropping empty entries.
func splitCommaList(field string) []string {
	if field == "" {
		return nil
	}
	parts := strings.Split(field, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseRuleTokens(tokens []string) (RuleSpec, bool) {
	if len(tokens) != 5 || !strings.EqualFold(tokens[0], "rule") {
		return RuleSpec{}, false
	}
	permission := strings.ToLower(tokens[1])
	if permission != string(Allow) && permission != string(Deny) {
		return RuleSpec{}, false
	}
	return RuleSpec{
		Permission: permission,
		Actions:    splitCommaList(tokens[2]),
		Roles:      splitCommaList(tokens[3]),
		Resources:  splitCommaList(tokens[4]),
	}, true
}

func parseMemberTokens(tokens []string) (MemberSpec, bool) {
	if len(tokens) != 3 || !strings.EqualFold(tokens[0], "member") {
		return MemberSpec{}, false
	}
	return MemberSpec{
		Roles:   splitCommaList(tokens[1]),
		Members: splitCommaList(tokens[2]),
	}, true
}

func parseUserTokens(tokens []string) (UserSpec, bool) {
	if len(tokens) != 3 || !strings.EqualFold(tokens[0], "user") {
		return UserSpec{}, false
	}
	return UserSpec{
		Users:  splitCommaList(tokens[1]),
		Groups: splitCommaList(tokens[2]),
	}, true
}

func parsePasswordTokens(tokens []string) (PasswordSpec, bool) {
	if len(tokens) != 3 || !strings.EqualFold(tokens[0], "password") {
		return PasswordSpec{}, false
	}
	return PasswordSpec{Username: tokens[1], Password: tokens[2]}, true
}

// ParseRuleLine parses a single "rule" line in isolation; it is exported
// for unit tests and callers that already know a line's grammar.
func ParseRuleLine(line string) (RuleSpec, bool) {
	return parseRuleTokens(tokenizeLine(line))
}

// ParseMemberLine parses a single "member" line in isolation.
func ParseMemberLine(line string) (MemberSpec, bool) {
	return parseMemberTokens(tokenizeLine(line))
}

// ParseUserLine parses a single "user" line in isolation.
func ParseUserLine(line string) (UserSpec, bool) {
	return parseUserTokens(tokenizeLine(line))
}

// ParsePasswordLine parses a single "password" line in isolation.
func ParsePasswordLine(line string) (PasswordSpec, bool) {
	return parsePasswordTokens(tokenizeLine(line))
}

// ParseText scans r line by line, dispatching each non-blank, non-comment
// line to whichever of the four grammars its leading keyword selects. A
// line with an unrecognized keyword, or one that fails its grammar's field
// count, is silently dropped — malformed domain-file lines are not a load
// failure.
func ParseText(r io.Reader) (ParsedText, error) {
	var out ParsedText
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		tokens := tokenizeLine(scanner.Text())
		if len(tokens) == 0 {
			continue
		}
		switch strings.ToLower(tokens[0]) {
		case "rule":
			if spec, ok := parseRuleTokens(tokens); ok {
				out.Rules = append(out.Rules, spec)
			}
		case "member":
			if spec, ok := parseMemberTokens(tokens); ok {
				out.Members = append(out.Members, spec)
			}
		case "user":
			if spec, ok := parseUserTokens(tokens); ok {
				out.Users = append(out.Users, spec)
			}
		case "password":
			if spec, ok := parsePasswordTokens(tokens); ok {
				out.Passwords = append(out.Passwords, spec)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return ParsedText{}, fmt.Errorf("policy: scan text: %w", err)
	}
	return out, nil
}
