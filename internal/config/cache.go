package config

import (
	"strings"
	"time"
)

// CacheConfig drives the Redis response-cache middleware, used on the
// public availability and catalog reads. Caching is skipped entirely
// when Enabled is false or no Redis client could be built.
type CacheConfig struct {
	Enabled      bool
	Methods      map[string]bool // HTTP methods eligible for caching
	TTL          time.Duration
	KeyStrategy  string // route_query | path_query
	Prefix       string
	MaxBodyBytes int // responses larger than this are not cached
}

func LoadCacheConfig() CacheConfig {
	return CacheConfig{
		Enabled:      envBool("CACHE_ENABLED", true),
		Methods:      methodSet(envStr("CACHE_METHODS", "GET")),
		TTL:          envDur("CACHE_TTL", 30*time.Second),
		KeyStrategy:  envStr("CACHE_KEY_STRATEGY", "route_query"),
		Prefix:       envStr("CACHE_PREFIX", "cache"),
		MaxBodyBytes: envInt("CACHE_MAX_BODY_BYTES", 1<<20),
	}
}

func methodSet(csv string) map[string]bool {
	set := make(map[string]bool)
	for _, m := range strings.Split(csv, ",") {
		if m = strings.ToUpper(strings.TrimSpace(m)); m != "" {
			set[m] = true
		}
	}
	return set
}
