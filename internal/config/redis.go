package config

// This file defines a Redis client constructor for the application.  Redis
// backs the rate limiter, the response cache and the room store.  If the
// connection fails during startup the constructor returns nil and callers
// fall back to their in-process implementations.

import (
    "context"
    "crypto/tls"
    "time"

    "github.com/redis/go-redis/v9"
    "github.com/spf13/viper"
)

// RedisConfig mirrors the REDIS_* environment variables.  Addr takes
// precedence unless both Host and Port are set.
type RedisConfig struct {
    Addr     string `json:"addr"`
    Host     string `json:"host"`
    Port     string `json:"port"`
    Password string `json:"-"`
    DB       int    `json:"db"`
    TLS      bool   `json:"tls"`
}

func loadRedisConfig(v *viper.Viper) RedisConfig {
    return RedisConfig{
        Addr:     v.GetString("redis-addr"),
        Host:     v.GetString("redis-host"),
        Port:     v.GetString("redis-port"),
        Password: v.GetString("redis-password"),
        DB:       v.GetInt("redis-db"),
        TLS:      v.GetBool("redis-tls"),
    }
}

// Address resolves the dial address, defaulting to localhost:6379.
func (c RedisConfig) Address() string {
    addr := c.Addr
    if c.Host != "" && c.Port != "" {
        addr = c.Host + ":" + c.Port
    }
    if addr == "" {
        addr = "localhost:6379"
    }
    return addr
}

// NewRedisClient instantiates a Redis client from cfg.  The returned client
// is nil if the server does not answer a ping within two seconds.
func NewRedisClient(cfg RedisConfig) *redis.Client {
    var tlsConf *tls.Config
    if cfg.TLS {
        tlsConf = &tls.Config{MinVersion: tls.VersionTLS12}
    }
    client := redis.NewClient(&redis.Options{
        Addr:      cfg.Address(),
        Password:  cfg.Password,
        DB:        cfg.DB,
        TLSConfig: tlsConf,
    })
    // Ping the server with a short timeout.  Return nil on failure.
    ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
    defer cancel()
    if err := client.Ping(ctx).Err(); err != nil {
        _ = client.Close()
        return nil
    }
    return client
}
