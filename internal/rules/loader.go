// Package rules walks the ancestor-directory chain of a resource path and
// loads the ".rbac.txt" rule files found along it, nearest directory
// first, into a policy.RuleDomain.
package rules

import (
	"os"
	"path"
	"time"

	"github.com/ridgeline/accessd/internal/match"
	"github.com/ridgeline/accessd/internal/policy"
)

const ruleFileName = ".rbac.txt"

// Loaded is the result of walking one resource path: the concatenated
// rule domain plus the newest modification time seen among the files that
// contributed to it, used by the decision cache to invalidate stale
// entries.
type Loaded struct {
	Domain    policy.RuleDomain
	NewestMod time.Time
	FilesRead int
}

// ancestorChain returns dir(p)'s ancestor directories from nearest to
// root, inclusive, for an already-normalized absolute resource path.
func ancestorChain(resourcePath string) []string {
	dir := path.Dir(resourcePath)
	var chain []string
	for {
		chain = append(chain, dir)
		if dir == "/" {
			break
		}
		dir = path.Dir(dir)
	}
	return chain
}

// Load walks the ancestor chain of resourcePath under root and concatenates
// every readable ".rbac.txt" it finds, nearest ancestor first. A missing
// or unreadable file is silently skipped; a malformed line within a file
// that exists is silently dropped by the policy text grammar itself. Each
// file's resource patterns are rewritten relative to its own directory
// before the rules enter the returned domain.
func Load(root, resourcePath string) (Loaded, error) {
	normalized := match.NormalizeResource(resourcePath)

	var domain policy.RuleDomain
	var newest time.Time
	filesRead := 0

	for _, dir := range ancestorChain(normalized) {
		filePath := path.Join(root, dir, ruleFileName)
		f, err := os.Open(filePath)
		if err != nil {
			continue
		}

		info, statErr := f.Stat()
		text, parseErr := policy.ParseText(f)
		closeErr := f.Close()
		if parseErr != nil || closeErr != nil {
			continue
		}

		prefix := dir + "/"
		fileDomain, err := policy.BuildRules(text.Rules, prefix)
		if err != nil {
			return Loaded{}, err
		}
		domain.Rules = append(domain.Rules, fileDomain.Rules...)
		filesRead++

		if statErr == nil && info.ModTime().After(newest) {
			newest = info.ModTime()
		}
	}

	return Loaded{Domain: domain, NewestMod: newest, FilesRead: filesRead}, nil
}
