package security

import (
	"strconv"
	"strings"
	"sync"
	"time"

	"dropout_risk_backend/internal/util"
	"dropout_risk_backend/pkg/monitoring"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

var (
	allowedHeaders = strings.Join([]string{"Authorization", "Content-Type", "Accept", "X-Requested-With"}, ", ")
	// 接口只有查询、训练和登录，不开放PUT/DELETE
	allowedMethods = "GET, POST, OPTIONS"
)

// CORS 仅允许白名单中的Origin
func CORS(allowedOrigins []string) gin.HandlerFunc {
	originSet := make(map[string]struct{}, len(allowedOrigins))
	for _, o := range allowedOrigins {
		originSet[o] = struct{}{}
	}

	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Add("Vary", "Origin")
		if origin := c.GetHeader("Origin"); origin != "" {
			if _, ok := originSet[origin]; ok {
				h.Set("Access-Control-Allow-Origin", origin)
				h.Set("Access-Control-Allow-Credentials", "true")
			}
		}
		h.Set("Access-Control-Allow-Headers", allowedHeaders)
		h.Set("Access-Control-Allow-Methods", allowedMethods)
		h.Set("Access-Control-Expose-Headers", "Retry-After")

		if c.Request.Method == "OPTIONS" {
			h.Set("Access-Control-Max-Age", "600")
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	}
}

// Secure sets response headers for an API that returns student records:
// nothing is framed, sniffed or cached by intermediaries.
func Secure() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Referrer-Policy", "no-referrer")
		c.Header("Cache-Control", "no-store")
		if c.Request.TLS != nil {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}
		c.Next()
	}
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// clientLimiters holds one token bucket per client IP.
type clientLimiters struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	every    rate.Limit
	burst    int
}

func (l *clientLimiters) get(key string, now time.Time) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	v, ok := l.visitors[key]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(l.every, l.burst)}
		l.visitors[key] = v
	}
	v.lastSeen = now
	return v.limiter
}

func (l *clientLimiters) sweep(expiry time.Duration, now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for key, v := range l.visitors {
		if now.Sub(v.lastSeen) > expiry {
			delete(l.visitors, key)
		}
	}
}

// RateLimiter 按IP限流，maxRequests 为窗口内的突发上限。
// 超限时返回统一响应格式的429并带 Retry-After。
func RateLimiter(maxRequests int, window time.Duration) gin.HandlerFunc {
	if maxRequests < 1 {
		maxRequests = 1
	}
	interval := window / time.Duration(maxRequests)
	limiters := &clientLimiters{
		visitors: make(map[string]*visitor),
		every:    rate.Every(interval),
		burst:    maxRequests,
	}

	expiry := window * 3
	if expiry < time.Minute {
		expiry = time.Minute
	}
	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for now := range ticker.C {
			limiters.sweep(expiry, now)
		}
	}()

	retryAfter := strconv.Itoa(int((interval + time.Second - 1) / time.Second))

	return func(c *gin.Context) {
		if !limiters.get(c.ClientIP(), time.Now()).Allow() {
			monitoring.RateLimitedTotal.Inc()
			c.Header("Retry-After", retryAfter)
			util.TooManyRequests(c)
			return
		}
		c.Next()
	}
}
