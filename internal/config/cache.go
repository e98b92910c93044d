package config

import (
    "strings"
    "time"

    "github.com/spf13/viper"
)

// CacheConfig defines settings for the response cache middleware.
// When Enabled is false or no Redis client is configured, caching will be disabled.
// Methods lists the HTTP methods to cache (e.g. GET, HEAD).  TTL is kept short
// because the only cached route is the public room directory.
type CacheConfig struct {
    Enabled      bool            `json:"enabled"`
    Methods      map[string]bool `json:"methods"`
    TTL          time.Duration   `json:"ttl"`
    Prefix       string          `json:"prefix"`
    MaxBodyBytes int             `json:"max_body_bytes"`
}

func loadCacheConfig(v *viper.Viper) CacheConfig {
    return CacheConfig{
        Enabled:      v.GetBool("cache-enabled"),
        Methods:      parseMethods(v.GetString("cache-methods")),
        TTL:          v.GetDuration("cache-ttl"),
        Prefix:       v.GetString("cache-prefix"),
        MaxBodyBytes: v.GetInt("cache-max-body-bytes"),
    }
}

func parseMethods(s string) map[string]bool {
    m := map[string]bool{}
    for _, p := range strings.Split(s, ",") {
        p = strings.TrimSpace(strings.ToUpper(p))
        if p != "" {
            m[p] = true
        }
    }
    return m
}
