package config

import (
    "os"
    "strconv"
    "time"
)

type RateLimitConfig struct {
    Enabled        bool
    Capacity       int
    RefillTokens   int
    RefillInterval time.Duration
    TTL            time.Duration
    KeyStrategy    string
    Prefix         string
    Debug          bool
}

// LoadRateLimitConfig builds the limiter applied to the whole /api surface.
func LoadRateLimitConfig() RateLimitConfig {
    def := RateLimitConfig{
        Enabled:        envBool("RATE_LIMIT_ENABLED", true),
        Capacity:       envInt("RATE_LIMIT_CAPACITY", 100),
        RefillTokens:   envInt("RATE_LIMIT_REFILL_TOKENS", 1),
        RefillInterval: envDur("RATE_LIMIT_REFILL_INTERVAL", 9*time.Second),
        TTL:            envDur("RATE_LIMIT_TTL", 30*time.Minute),
        KeyStrategy:    envStr("RATE_LIMIT_KEY_STRATEGY", "ip"),
        Prefix:         envStr("RATE_LIMIT_PREFIX", "rl"),
        Debug:          envBool("RATE_LIMIT_DEBUG", false),
    }
    return normalizeRateLimit(def)
}

// LoadLoginRateLimitConfig builds the stricter bucket guarding /auth/login:
// 5 attempts, refilling one token every 3 minutes.
func LoadLoginRateLimitConfig() RateLimitConfig {
    def := RateLimitConfig{
        Enabled:        envBool("RATE_LIMIT_LOGIN_ENABLED", true),
        Capacity:       envInt("RATE_LIMIT_LOGIN_CAPACITY", 5),
        RefillTokens:   1,
        RefillInterval: envDur("RATE_LIMIT_LOGIN_REFILL_INTERVAL", 3*time.Minute),
        TTL:            envDur("RATE_LIMIT_LOGIN_TTL", time.Hour),
        KeyStrategy:    "ip_route",
        Prefix:         envStr("RATE_LIMIT_PREFIX", "rl") + ":login",
        Debug:          envBool("RATE_LIMIT_DEBUG", false),
    }
    return normalizeRateLimit(def)
}

// LoadRegisterRateLimitConfig builds the bucket guarding /auth/register:
// 3 attempts, refilling one token every 20 minutes.
func LoadRegisterRateLimitConfig() RateLimitConfig {
    def := RateLimitConfig{
        Enabled:        envBool("RATE_LIMIT_REGISTER_ENABLED", true),
        Capacity:       envInt("RATE_LIMIT_REGISTER_CAPACITY", 3),
        RefillTokens:   1,
        RefillInterval: envDur("RATE_LIMIT_REGISTER_REFILL_INTERVAL", 20*time.Minute),
        TTL:            envDur("RATE_LIMIT_REGISTER_TTL", 2*time.Hour),
        KeyStrategy:    "ip_route",
        Prefix:         envStr("RATE_LIMIT_PREFIX", "rl") + ":register",
        Debug:          envBool("RATE_LIMIT_DEBUG", false),
    }
    return normalizeRateLimit(def)
}

func normalizeRateLimit(def RateLimitConfig) RateLimitConfig {
    if def.Capacity < 1 { def.Capacity = 1 }
    if def.RefillTokens < 1 { def.RefillTokens = 1 }
    if def.RefillInterval <= 0 { def.RefillInterval = time.Second }
    minTTL := 5 * def.RefillInterval
    if def.TTL < minTTL { def.TTL = minTTL }
    return def
}

func envStr(k, d string) string { if v := os.Getenv(k); v != "" { return v }; return d }
func envBool(k string, d bool) bool {
    v := os.Getenv(k)
    if v == "" { return d }
    switch v {
    case "1","true","TRUE","True","yes","YES","on","ON": return true
    case "0","false","FALSE","False","no","NO","off","OFF": return false
    }
    return d
}
func envInt(k string, d int) int {
    v := os.Getenv(k); if v == "" { return d }
    if n, err := strconv.Atoi(v); err == nil { return n }
    return d
}
func envDur(k string, d time.Duration) time.Duration {
    v := os.Getenv(k); if v == "" { return d }
    if dur, err := time.ParseDuration(v); err == nil { return dur }
    return d
}
