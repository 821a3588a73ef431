package middleware

import (
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/SmakGames/Companion/pkg/clientip"
)

// Talk endpoint rate limit: per-IP token bucket so one chatty client cannot
// monopolize the generation collaborator. 12 req/min with a burst of 4.

const (
	talkRPS           = 0.2 // 12/min
	talkBurst         = 4
	talkCleanupPeriod = 5 * time.Minute
	talkLimiterTTL    = 30 * time.Minute
)

type talkLimiterEntry struct {
	limiter *rate.Limiter
	lastUse time.Time
}

var (
	talkEntries   = make(map[string]*talkLimiterEntry)
	talkEntriesMu sync.Mutex
	talkCleanup   bool
)

func getTalkLimiter(ip string) *rate.Limiter {
	talkEntriesMu.Lock()
	defer talkEntriesMu.Unlock()
	startTalkCleanupOnce()

	e, ok := talkEntries[ip]
	if !ok {
		e = &talkLimiterEntry{
			limiter: rate.NewLimiter(rate.Limit(talkRPS), talkBurst),
		}
		talkEntries[ip] = e
	}
	e.lastUse = time.Now()
	return e.limiter
}

func startTalkCleanupOnce() {
	if talkCleanup {
		return
	}
	talkCleanup = true
	go func() {
		ticker := time.NewTicker(talkCleanupPeriod)
		defer ticker.Stop()
		for range ticker.C {
			talkEntriesMu.Lock()
			now := time.Now()
			for k, e := range talkEntries {
				if now.Sub(e.lastUse) > talkLimiterTTL {
					delete(talkEntries, k)
				}
			}
			talkEntriesMu.Unlock()
		}
	}()
}

// TalkRateLimit throttles the talk endpoint per IP. Returns 429 when the
// bucket is empty.
func TalkRateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientip.FromRequest(r)
		if !getTalkLimiter(ip).Allow() {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"success":false,"message":"Too many messages. Please slow down."}`))
			return
		}
		next.ServeHTTP(w, r)
	})
}
