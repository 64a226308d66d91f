package tally_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/gissleh/tally"
)

func TestBucketSharesByKey(t *testing.T) {
	a := tally.Bucket("test.bucket.shared", time.Second)
	b := tally.Bucket("test.bucket.shared", time.Second)
	c := tally.Bucket("test.bucket.other", time.Second)

	assert.Same(t, a, b, "same key should yield the same limiter")
	assert.NotSame(t, a, c, "distinct keys should not couple their pacing")
}

func TestBucketWindow(t *testing.T) {
	limiter := tally.Bucket("test.bucket.window", time.Millisecond*100)

	assert.True(t, limiter.Allow(), "first token should be granted")
	assert.False(t, limiter.Allow(), "second token within the window should be denied")

	time.Sleep(time.Millisecond * 150)

	assert.True(t, limiter.Allow(), "token should be granted again after the window")
}
