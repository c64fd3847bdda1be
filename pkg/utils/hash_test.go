package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHashString(t *testing.T) {
	assert.Equal(t,
		"e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855",
		HashString(""),
	)
}

func TestCacheKeyNormalizesWhitespaceAndCase(t *testing.T) {
	a := CacheKey("beginner", "What is  DNA?")
	b := CacheKey("beginner", "what is dna?")
	c := CacheKey("advanced", "what is dna?")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}

func TestCacheKeySeparatesParts(t *testing.T) {
	assert.NotEqual(t, CacheKey("ab", "c"), CacheKey("a", "bc"))
}
