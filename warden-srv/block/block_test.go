package block

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
		ok       bool
	}{
		{"bare host", "example.com", "example.com", true},
		{"with www", "www.example.com", "example.com", true},
		{"full url with www and mixed case", "http://WWW.Example.com/x", "example.com", true},
		{"https scheme", "https://example.com/path?x=1", "example.com", true},
		{"uppercase bare host", "EXAMPLE.COM", "example.com", true},
		{"empty string", "", "", false},
		{"scheme with empty host", "http:///path", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Normalize(tt.input)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.expected, got)
			}
		})
	}
}

// TestNormalizeIdempotence verifies testable property #4.
func TestNormalizeIdempotence(t *testing.T) {
	inputs := []string{"example.com", "www.example.com", "EXAMPLE.COM", "sub.example.com"}
	for _, in := range inputs {
		once, ok := Normalize(in)
		if !ok {
			continue
		}
		twice, ok2 := Normalize(once)
		assert := assert.New(t)
		assert.True(ok2)
		assert.Equal(once, twice)
	}
}

// TestNormalizeEquivalences verifies testable property #5.
func TestNormalizeEquivalences(t *testing.T) {
	inputs := []string{
		"http://WWW.Example.com/x",
		"www.example.com",
		"example.com",
	}
	for _, in := range inputs {
		got, ok := Normalize(in)
		assert := assert.New(t)
		assert.True(ok)
		assert.Equal("example.com", got)
	}
}

func TestSetAddAndContains(t *testing.T) {
	var s Set

	added, ok := s.Add("http://Example.com")
	assert.True(t, ok)
	assert.True(t, added)

	added, ok = s.Add("www.example.com")
	assert.True(t, ok)
	assert.False(t, added, "already present under normalized form")

	assert.True(t, s.Contains("EXAMPLE.COM"))
	assert.True(t, s.Contains("www.example.com"))
	assert.False(t, s.Contains("other.com"))
}

func TestSetAddInvalid(t *testing.T) {
	var s Set
	_, ok := s.Add("")
	assert.False(t, ok)
}

func TestPatternMatcher(t *testing.T) {
	m := NewPatternMatcher([]string{"doubleclick.net", "ads."})

	assert.True(t, m.MatchesHost("ads.doubleclick.net"))
	assert.True(t, m.MatchesHost("example.doubleclick.net"))
	assert.False(t, m.MatchesHost("example.com"))
}

func TestPatternMatcherEmpty(t *testing.T) {
	m := NewPatternMatcher(nil)
	assert.False(t, m.MatchesHost("example.com"))
}
