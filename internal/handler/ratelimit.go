package handler

import (
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// ipRateLimiter 为每个客户端 IP 维护一个令牌桶，长时间没有请求的 IP 会在下一次清扫时被移除
type ipRateLimiter struct {
	mu          sync.Mutex
	visitors    map[string]*visitor
	limit       rate.Limit
	burst       int
	idleTimeout time.Duration
	lastSweep   time.Time
	now         func() time.Time
}

func newIPRateLimiter(requestsPerMinute int, burst int, idleTimeout time.Duration) *ipRateLimiter {
	limit := rate.Inf
	if requestsPerMinute > 0 {
		limit = rate.Every(time.Minute / time.Duration(requestsPerMinute))
	}

	return &ipRateLimiter{
		visitors:    make(map[string]*visitor),
		limit:       limit,
		burst:       burst,
		idleTimeout: idleTimeout,
		lastSweep:   time.Now(),
		now:         time.Now,
	}
}

func (l *ipRateLimiter) get(ip string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if l.idleTimeout > 0 && now.Sub(l.lastSweep) >= l.idleTimeout {
		l.sweep(now)
	}

	v, exists := l.visitors[ip]
	if !exists {
		v = &visitor{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.visitors[ip] = v
	}
	v.lastSeen = now
	return v.limiter
}

// sweep 移除空闲超过 idleTimeout 的 IP，调用方需持有锁
func (l *ipRateLimiter) sweep(now time.Time) {
	for ip, v := range l.visitors {
		if now.Sub(v.lastSeen) >= l.idleTimeout {
			delete(l.visitors, ip)
		}
	}
	l.lastSweep = now
}

func (l *ipRateLimiter) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.visitors)
}

// clientIP 取 RemoteAddr 中的主机部分，RealIP 中间件已经处理过代理头
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
