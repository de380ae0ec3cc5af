package rules

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ridgeline/accessd/internal/policy"
)

func writeRuleFile(t *testing.T, root, dir, contents string) {
	t.Helper()
	full := filepath.Join(root, dir)
	require.NoError(t, os.MkdirAll(full, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(full, ruleFileName), []byte(contents), 0o644))
}

func TestLoadNearestDirFirst(t *testing.T) {
	root := t.TempDir()
	writeRuleFile(t, root, ".", "rule allow GET admin /**\n")
	writeRuleFile(t, root, "docs", "rule allow GET reader **\n")

	loaded, err := Load(root, "/docs/a")
	require.NoError(t, err)
	require.Len(t, loaded.Domain.Rules, 2)
	require.Equal(t, 2, loaded.FilesRead)
	// nearest ancestor ("docs") contributes its rule before the root rule.
	require.Equal(t, "docs/**", loaded.Domain.Rules[0].Resource.Name[1:])
}

func TestLoadMissingFilesSkippedSilently(t *testing.T) {
	root := t.TempDir()
	loaded, err := Load(root, "/a/b/c")
	require.NoError(t, err)
	require.Empty(t, loaded.Domain.Rules)
	require.Equal(t, 0, loaded.FilesRead)
}

func TestLoadMalformedLineDroppedNotFatal(t *testing.T) {
	root := t.TempDir()
	writeRuleFile(t, root, ".", "rule bogus-permission GET admin /**\nrule allow GET admin /x\n")

	loaded, err := Load(root, "/x")
	require.NoError(t, err)
	require.Len(t, loaded.Domain.Rules, 1)
}

func TestLoadAppliesDirectoryPrefix(t *testing.T) {
	root := t.TempDir()
	writeRuleFile(t, root, "a/b", "rule allow GET admin **\n")

	loaded, err := Load(root, "/a/b/c")
	require.NoError(t, err)
	require.Len(t, loaded.Domain.Rules, 1)
	require.Equal(t, "/a/b/**", loaded.Domain.Rules[0].Resource.Name)
}

func TestLoadFeedsSolver(t *testing.T) {
	root := t.TempDir()
	writeRuleFile(t, root, ".", "rule allow GET admin /**\n")

	loaded, err := Load(root, "/x")
	require.NoError(t, err)

	domain := policy.Domain{Rules: loaded.Domain}
	alice := policy.User{Name: "alice"}
	rule := policy.Solve(domain, policy.Request{
		Action:   "GET",
		Resource: "/x",
		User:     alice,
	})
	// alice has no roles, so even though a rule pattern-matches structurally
	// the role test fails and the default applies.
	require.False(t, policy.IsAllowed(rule))
}
