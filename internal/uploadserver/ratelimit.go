package uploadserver

import (
	"context"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/resiliome/upload/internal/logging"
	"github.com/resiliome/upload/internal/metrics"
)

// rateLimiterEntry pairs a token bucket with its last-use time so the
// janitor can evict idle clients (grounded on ratelimit.go's
// rateLimiterEntry / cleanupRateLimiters).
type rateLimiterEntry struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// rateLimitedReader throttles Read calls against a per-client token
// bucket, adapted from the teacher's RateLimitedWriter (which throttles
// outbound download bytes) to the inbound chunk-upload path.
type rateLimitedReader struct {
	r       io.Reader
	limiter *rate.Limiter
}

func (rl *rateLimitedReader) Read(p []byte) (int, error) {
	// WaitN rejects n larger than the burst, so never read more than that.
	if burst := rl.limiter.Burst(); len(p) > burst {
		p = p[:burst]
	}
	n, err := rl.r.Read(p)
	if n > 0 {
		if werr := rl.limiter.WaitN(context.Background(), n); werr != nil {
			return n, werr
		}
	}
	return n, err
}

// getRateLimiter returns the token bucket for clientIP, creating one on
// first use. Returns nil when rate limiting is disabled.
func (s *Server) getRateLimiter(clientIP string) *rate.Limiter {
	if s.RateLimitMbps <= 0 {
		return nil
	}

	if val, ok := s.rateLimiters.Load(clientIP); ok {
		entry := val.(*rateLimiterEntry)
		entry.lastAccess = time.Now()
		return entry.limiter
	}

	bytesPerSecond := (s.RateLimitMbps * 1_000_000) / 8
	burst := int(bytesPerSecond / 10) // 100ms burst
	if burst < 4096 {
		burst = 4096
	}
	lim := rate.NewLimiter(rate.Limit(bytesPerSecond), burst)

	entry := &rateLimiterEntry{limiter: lim, lastAccess: time.Now()}
	s.rateLimiters.Store(clientIP, entry)
	return lim
}

// cleanupRateLimiters evicts entries unused for over an hour, preventing
// unbounded growth of the client-IP map.
func (s *Server) cleanupRateLimiters() {
	staleThreshold := time.Now().Add(-1 * time.Hour)
	s.rateLimiters.Range(func(key, value any) bool {
		entry := value.(*rateLimiterEntry)
		if entry.lastAccess.Before(staleThreshold) {
			s.rateLimiters.Delete(key)
		}
		return true
	})
}

func getClientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		ips := strings.Split(forwarded, ",")
		return strings.TrimSpace(ips[0])
	}
	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return realIP
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// withRateLimit throttles the chunk PUT body read rate per client IP
// (spec §5: resource discipline, no req/sec cap — a byte-rate cap instead).
func (s *Server) withRateLimit(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		clientIP := getClientIP(r)
		if lim := s.getRateLimiter(clientIP); lim != nil {
			metrics.RecordRateLimit(clientIP)
			logging.Debug("rate limiting chunk upload", zap.String("client_ip", clientIP))
			r.Body = io.NopCloser(&rateLimitedReader{r: r.Body, limiter: lim})
		}
		next(w, r)
	}
}
