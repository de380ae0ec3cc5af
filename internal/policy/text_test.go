package policy

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRuleLine(t *testing.T) {
	spec, ok := ParseRuleLine("rule allow GET,PUT admin,reader /docs/**, /x # a comment")
	require.True(t, ok)
	assert.Equal(t, "allow", spec.Permission)
	assert.Equal(t, []string{"GET", "PUT"}, spec.Actions)
	assert.Equal(t, []string{"admin", "reader"}, spec.Roles)
	assert.Equal(t, []string{"/docs/**", "/x"}, spec.Resources)
}

func TestParseRuleLineRejectsBadPermission(t *testing.T) {
	_, ok := ParseRuleLine("rule maybe GET admin /x")
	assert.False(t, ok)
}

func TestParseRuleLineRejectsWrongArity(t *testing.T) {
	_, ok := ParseRuleLine("rule allow GET admin")
	assert.False(t, ok)
}

func TestParseMemberLine(t *testing.T) {
	spec, ok := ParseMemberLine("member admin @alice,ops")
	require.True(t, ok)
	assert.Equal(t, []string{"admin"}, spec.Roles)
	assert.Equal(t, []string{"@alice", "ops"}, spec.Members)
}

func TestParseUserLine(t *testing.T) {
	spec, ok := ParseUserLine("user alice,bob eng, ops")
	require.True(t, ok)
	assert.Equal(t, []string{"alice", "bob"}, spec.Users)
	assert.Equal(t, []string{"eng", "ops"}, spec.Groups)
}

func TestParsePasswordLine(t *testing.T) {
	spec, ok := ParsePasswordLine("password alice s3cret")
	require.True(t, ok)
	assert.Equal(t, "alice", spec.Username)
	assert.Equal(t, "s3cret", spec.Password)
}

func TestParseTextBlankAndCommentLinesIgnored(t *testing.T) {
	src := "\n# just a comment\n   \nrule allow GET admin /x\n"
	out, err := ParseText(strings.NewReader(src))
	require.NoError(t, err)
	assert.Len(t, out.Rules, 1)
}

func TestParseTextUnrecognizedKeywordDropped(t *testing.T) {
	src := "grant admin alice\nuser alice eng\n"
	out, err := ParseText(strings.NewReader(src))
	require.NoError(t, err)
	assert.Len(t, out.Users, 1)
}

func TestParseTextMixedGrammars(t *testing.T) {
	src := `
user alice eng
user bob ops
member admin @alice
member reader ops
rule allow GET admin /**
password alice hunter2
`
	out, err := ParseText(strings.NewReader(src))
	require.NoError(t, err)
	assert.Len(t, out.Users, 2)
	assert.Len(t, out.Members, 2)
	assert.Len(t, out.Rules, 1)
	assert.Len(t, out.Passwords, 1)
}
