package tally

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

var bucketsMutex sync.Mutex
var buckets = make(map[string]*rate.Limiter)

// Bucket returns the process-wide rate limiter for the key, creating it with
// one token per interval (burst 1) on first use. Clients configured with the
// same bucket key share one limiter and therefore throttle jointly; give each
// connection its own key if that is not what you want.
//
// The interval only applies when the bucket is created; later callers get the
// existing limiter regardless of the interval they pass.
func Bucket(key string, interval time.Duration) *rate.Limiter {
	bucketsMutex.Lock()
	defer bucketsMutex.Unlock()

	limiter, ok := buckets[key]
	if !ok {
		limiter = rate.NewLimiter(rate.Every(interval), 1)
		buckets[key] = limiter
	}

	return limiter
}
