package configcache

import (
	"regexp"
	"time"
)

const (
	jitterBaseMinutes   = 4
	jitterMinuteSpread  = 2  // whole minutes added: 0 or 1
	jitterSecondsSpread = 60 // seconds added: 0..59
)

// DefaultBlacklist matches keys that must never be served from cache.
func DefaultBlacklist() []*regexp.Regexp {
	return []*regexp.Regexp{regexp.MustCompile(`(?i)session$`)}
}

// cacheDuration applies the TTL rule: an explicit duration wins, blacklisted
// keys expire immediately, everything else gets a jittered default in [4m, 6m).
func (c *Cache) cacheDuration(key string, explicit time.Duration) time.Duration {
	if explicit > 0 {
		return explicit
	}
	if c.blacklisted(key) {
		return 0
	}
	return jitter(c.intn)
}

func (c *Cache) blacklisted(key string) bool {
	for _, re := range c.blacklist {
		if re.MatchString(key) {
			return true
		}
	}
	return false
}

// jitter spreads expiries so that processes started together do not refill at once.
func jitter(intn func(n int) int) time.Duration {
	minutes := jitterBaseMinutes + intn(jitterMinuteSpread)
	seconds := intn(jitterSecondsSpread)
	return time.Duration(minutes)*time.Minute + time.Duration(seconds)*time.Second
}
