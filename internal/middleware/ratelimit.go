package middleware

import (
    "context"
    "errors"
    "log/slog"
    "net/http"
    "strconv"
    "strings"
    "time"

    "github.com/labstack/echo/v4"
    "github.com/redis/go-redis/v9"

    "github.com/iliyamo/cms-backend/internal/config"
)

// bucketScript takes one token from the bucket at KEYS[1], refilling one
// token per elapsed interval first.  It returns {allowed, remaining,
// retry_after_ms}.
//
// ARGV: now_ms, capacity, interval_ms, ttl_ms
var bucketScript = redis.NewScript(`
local now = tonumber(ARGV[1])
local cap = tonumber(ARGV[2])
local every = tonumber(ARGV[3])
local ttl = tonumber(ARGV[4])

local cur = redis.call('HMGET', KEYS[1], 'tokens', 'ts')
local tokens = tonumber(cur[1])
local ts = tonumber(cur[2])
if tokens == nil or ts == nil then
    tokens = cap
    ts = now
end

local gained = math.floor(math.max(0, now - ts) / every)
if gained > 0 then
    tokens = math.min(cap, tokens + gained)
    ts = ts + gained * every
end

local allowed = 0
local wait = 0
if tokens >= 1 then
    allowed = 1
    tokens = tokens - 1
else
    wait = math.max(0, every - (now - ts))
end

redis.call('HSET', KEYS[1], 'tokens', tokens, 'ts', ts)
redis.call('PEXPIRE', KEYS[1], ttl)
return {allowed, tokens, wait}
`)

// Decision is the outcome of one Limiter.Allow call.
type Decision struct {
    Allowed    bool
    Remaining  int64
    RetryAfter time.Duration
}

// Limiter is a token bucket kept in Redis, so the limit holds across
// server instances.
type Limiter struct {
    rdb redis.Scripter
    cfg config.RateLimitConfig
    now func() time.Time
}

func NewLimiter(cfg config.RateLimitConfig, rdb redis.Scripter) *Limiter {
    return &Limiter{rdb: rdb, cfg: cfg, now: time.Now}
}

// Allow takes one token from the bucket named key.
func (l *Limiter) Allow(ctx context.Context, key string) (Decision, error) {
    res, err := bucketScript.Run(ctx, l.rdb, []string{key},
        l.now().UnixMilli(),
        l.cfg.Capacity,
        l.cfg.RefillEvery.Milliseconds(),
        l.cfg.TTL.Milliseconds(),
    ).Int64Slice()
    if err != nil {
        return Decision{}, err
    }
    if len(res) != 3 {
        return Decision{}, errors.New("ratelimit: unexpected script reply")
    }
    return Decision{
        Allowed:    res[0] == 1,
        Remaining:  res[1],
        RetryAfter: time.Duration(res[2]) * time.Millisecond,
    }, nil
}

// NewTokenBucket returns a middleware that rejects requests with 429 once
// the caller's bucket is empty.  Redis failures let the request through.
func NewTokenBucket(cfg config.RateLimitConfig, rdb redis.Scripter, log *slog.Logger) echo.MiddlewareFunc {
    if !cfg.Enabled || rdb == nil {
        return passThrough
    }
    if log == nil {
        log = slog.Default()
    }
    limiter := NewLimiter(cfg, rdb)

    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            key := rateKey(cfg, c)
            d, err := limiter.Allow(c.Request().Context(), key)
            if err != nil {
                log.Warn("rate limiter unavailable", "key", key, "err", err)
                return next(c)
            }

            h := c.Response().Header()
            h.Set("X-RateLimit-Limit", strconv.Itoa(cfg.Capacity))
            h.Set("X-RateLimit-Remaining", strconv.FormatInt(d.Remaining, 10))
            if d.Allowed {
                return next(c)
            }

            secs := int((d.RetryAfter + time.Second - 1) / time.Second)
            h.Set("Retry-After", strconv.Itoa(secs))
            return c.JSON(http.StatusTooManyRequests, echo.Map{
                "message":     "too_many_requests",
                "retry_after": secs,
            })
        }
    }
}

func rateKey(cfg config.RateLimitConfig, c echo.Context) string {
    ip := c.RealIP()
    if ip == "" {
        ip = "unknown"
    }
    route := c.Request().Method + " " + c.Path()

    parts := []string{cfg.Prefix}
    switch strings.ToLower(cfg.KeyStrategy) {
    case "ip":
        parts = append(parts, "ip", ip)
    case "route":
        parts = append(parts, "route", route)
    default:
        parts = append(parts, "ip", ip, "route", route)
    }
    return strings.Join(parts, ":")
}

func passThrough(next echo.HandlerFunc) echo.HandlerFunc { return next }
