package redis

import (
	"context"
	"os"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnswerKeyNormalizesMessage(t *testing.T) {
	a := AnswerKey("beginner", "prompt", "What is  DNA?")
	b := AnswerKey("beginner", "prompt", "what is dna?")
	c := AnswerKey("advanced", "prompt", "what is dna?")
	d := AnswerKey("beginner", "other prompt", "what is dna?")

	assert.True(t, strings.HasPrefix(a, answerPrefix))
	assert.Equal(t, a, b)
	assert.NotEqual(t, b, c)
	assert.NotEqual(t, b, d)
}

// Needs a live server: TUTOR_TEST_REDIS_HOST and optionally TUTOR_TEST_REDIS_PORT.
func TestAnswerRoundTrip(t *testing.T) {
	host := os.Getenv("TUTOR_TEST_REDIS_HOST")
	if host == "" {
		t.Skip("TUTOR_TEST_REDIS_HOST not set")
	}
	port := 6379
	if p := os.Getenv("TUTOR_TEST_REDIS_PORT"); p != "" {
		var err error
		port, err = strconv.Atoi(p)
		require.NoError(t, err)
	}

	c, err := NewClient(host, port, "", 0, time.Minute)
	require.NoError(t, err)
	defer c.Close()

	ctx := context.Background()
	key := AnswerKey("intermediate", "prompt", "test round trip "+time.Now().String())

	_, ok, err := c.GetAnswer(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.SetAnswer(ctx, key, &CachedAnswer{Text: "cached", CreatedAt: time.Now()}))

	got, ok, err := c.GetAnswer(ctx, key)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "cached", got.Text)

	require.NoError(t, c.InvalidateAnswers(ctx))
	_, ok, err = c.GetAnswer(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)
}
