package block

import (
	ahocorasick "github.com/BobuSumisu/aho-corasick"
)

// PatternMatcher supplements the exact-hostname Set with substring/suffix
// domain patterns (e.g. "doubleclick.net" matching "ads.doubleclick.net"),
// compiled into an Aho-Corasick trie for O(n) multi-pattern matching over the
// normalized host. This mirrors how the teacher's domain-list classifier
// compiles a flat domain list into a trie rather than testing each pattern
// in a loop.
//
// PatternMatcher is read-only once built: the blocklist's exact-hostname Set
// remains the only runtime-mutable block surface (§4.2); patterns are loaded
// once at startup from an operator-supplied file.
type PatternMatcher struct {
	trie *ahocorasick.Trie
}

// NewPatternMatcher compiles patterns into a trie. An empty pattern list
// yields a matcher that never matches.
func NewPatternMatcher(patterns []string) *PatternMatcher {
	if len(patterns) == 0 {
		return &PatternMatcher{}
	}
	return &PatternMatcher{
		trie: ahocorasick.NewTrieBuilder().AddStrings(patterns).Build(),
	}
}

// MatchesHost reports whether the normalized host contains any configured
// pattern as a substring.
func (m *PatternMatcher) MatchesHost(host string) bool {
	if m == nil || m.trie == nil {
		return false
	}
	return len(m.trie.MatchString(host)) > 0
}
