package cidraddr

import (
	"strconv"
	"strings"
	"time"
)

// ParseUsernameExtension parses the `-ttl-N` / `-session-N` / `-range-N`
// labels out of a proxy username (CIDR username format).
// Unknown keywords are ignored, not fatal. If more than one recognised
// keyword is present, the last one wins. now is the wall-clock time used
// to compute the TTL window bucket (t - t mod N); callers pass time.Now()
// in production and a fixed value in tests.
func ParseUsernameExtension(username string, now time.Time) Extension {
	labels := strings.Split(username, "-")
	ext := None

	for i := 0; i < len(labels); i++ {
		keyword := strings.ToLower(labels[i])
		if keyword != "ttl" && keyword != "session" && keyword != "range" {
			continue
		}
		if i+1 >= len(labels) {
			continue
		}
		value, err := strconv.ParseUint(labels[i+1], 10, 64)
		if err != nil {
			continue
		}
		i++ // consume the value label so it isn't re-scanned as a keyword

		switch keyword {
		case "ttl":
			ext = TTL(ttlWindowBucket(now, value))
		case "session":
			ext = Session(value)
		case "range":
			ext = Range(value)
		}
	}

	return ext
}

// ttlWindowBucket normalises the current wall-clock second to a stable
// TTL window: t - (t mod ttlSeconds).
func ttlWindowBucket(now time.Time, ttlSeconds uint64) uint64 {
	if ttlSeconds == 0 {
		return uint64(now.Unix())
	}
	t := uint64(now.Unix())
	return t - (t % ttlSeconds)
}
