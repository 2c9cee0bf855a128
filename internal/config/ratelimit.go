package config

import "time"

// RateLimitConfig configures the Redis token bucket in front of the
// credential-accepting endpoints (token, signup, google).  A bucket holds
// Capacity attempts and regains one every RefillEvery.
type RateLimitConfig struct {
    Enabled     bool
    Capacity    int
    RefillEvery time.Duration
    TTL         time.Duration // idle buckets are dropped after this long
    KeyStrategy string        // "ip", "route" or "ip_route"
    Prefix      string
}

// LoadRateLimitConfig reads RATE_LIMIT_* variables.  Defaults allow a
// burst of 10 attempts per client and route, then one every 6s.
func LoadRateLimitConfig() RateLimitConfig {
    cfg := RateLimitConfig{
        Enabled:     envBool("RATE_LIMIT_ENABLED", true),
        Capacity:    envInt("RATE_LIMIT_CAPACITY", 10),
        RefillEvery: envDur("RATE_LIMIT_REFILL_EVERY", 6*time.Second),
        TTL:         envDur("RATE_LIMIT_TTL", 10*time.Minute),
        KeyStrategy: envStr("RATE_LIMIT_KEY_STRATEGY", "ip_route"),
        Prefix:      envStr("RATE_LIMIT_PREFIX", "cms:rl"),
    }
    if cfg.Capacity < 1 {
        cfg.Capacity = 1
    }
    if cfg.RefillEvery <= 0 {
        cfg.RefillEvery = time.Second
    }
    // a bucket must outlive the time it takes to refill completely
    if full := time.Duration(cfg.Capacity) * cfg.RefillEvery; cfg.TTL < full {
        cfg.TTL = full
    }
    return cfg
}
