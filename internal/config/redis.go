package config

import (
    "context"
    "crypto/tls"
    "net"
    "strconv"
    "time"

    "github.com/redis/go-redis/v9"
)

// RedisConfig locates the Redis server shared by the rate limiter and
// the response cache.
//
//   REDIS_ADDR      host:port, default localhost:6379
//   REDIS_HOST/PORT override REDIS_ADDR when both are set
//   REDIS_PASSWORD  optional
//   REDIS_DB        database number
//   REDIS_TLS       "true" enables TLS 1.2+
type RedisConfig struct {
    Addr     string
    Password string
    DB       int
    TLS      bool
}

func LoadRedisConfig() RedisConfig {
    addr := envStr("REDIS_ADDR", "localhost:6379")
    if host, port := envStr("REDIS_HOST", ""), envStr("REDIS_PORT", ""); host != "" && port != "" {
        addr = net.JoinHostPort(host, port)
    }
    return RedisConfig{
        Addr:     addr,
        Password: envStr("REDIS_PASSWORD", ""),
        DB:       envInt("REDIS_DB", 0),
        TLS:      envBool("REDIS_TLS", false),
    }
}

func (rc RedisConfig) String() string {
    return "redis://" + rc.Addr + "/" + strconv.Itoa(rc.DB)
}

// NewRedisClient connects and pings.  On error the client is closed and
// nil is returned; callers run without rate limiting and caching.
func NewRedisClient(ctx context.Context, rc RedisConfig) (*redis.Client, error) {
    opts := &redis.Options{
        Addr:     rc.Addr,
        Password: rc.Password,
        DB:       rc.DB,
    }
    if rc.TLS {
        opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
        if host, _, err := net.SplitHostPort(rc.Addr); err == nil {
            opts.TLSConfig.ServerName = host
        }
    }
    client := redis.NewClient(opts)
    ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
    defer cancel()
    if err := client.Ping(ctx).Err(); err != nil {
        _ = client.Close()
        return nil, err
    }
    return client, nil
}
