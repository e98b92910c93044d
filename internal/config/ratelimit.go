package config

import (
    "time"

    "github.com/spf13/viper"
)

// RateLimitConfig drives the fixed-window limiter on the completion routes.
// Max requests are allowed per Window per key; the counter resets at each
// window boundary.
type RateLimitConfig struct {
    Enabled bool          `json:"enabled"`
    Max     int           `json:"max"`
    Window  time.Duration `json:"window"`
    Prefix  string        `json:"prefix"`
    Debug   bool          `json:"debug"`
}

func loadRateLimitConfig(v *viper.Viper) RateLimitConfig {
    def := RateLimitConfig{
        Enabled: v.GetBool("rate-limit-enabled"),
        Max:     v.GetInt("rate-limit-max"),
        Window:  v.GetDuration("rate-limit-window"),
        Prefix:  v.GetString("rate-limit-prefix"),
        Debug:   v.GetBool("rate-limit-debug"),
    }
    if def.Window <= 0 { def.Window = time.Minute }
    if def.Prefix == "" { def.Prefix = "rl" }
    return def
}
