package middleware

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/localtours/booking-backend/internal/config"
)

// recorder tees the response into a buffer while streaming it to the
// client. Bodies over limit set overflow and are never cached, so a
// truncated payload can never be replayed.
type recorder struct {
	http.ResponseWriter
	status   int
	buf      bytes.Buffer
	limit    int64
	overflow bool
}

func (r *recorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *recorder) Write(b []byte) (int, error) {
	if !r.overflow {
		if r.limit > 0 && int64(r.buf.Len()+len(b)) > r.limit {
			r.overflow = true
			r.buf.Reset()
		} else {
			r.buf.Write(b)
		}
	}
	return r.ResponseWriter.Write(b)
}

// cacheKey hashes the request identity into a fixed-size Redis key.
// Availability queries carry the slot id in the route path, so the
// default route_query strategy keys them apart.
func cacheKey(cfg config.CacheConfig, c echo.Context) string {
	req := c.Request()
	var id string
	switch strings.ToLower(cfg.KeyStrategy) {
	case "route":
		id = c.Path()
	case "method_route":
		id = req.Method + ":" + c.Path()
	case "method_route_query":
		id = req.Method + ":" + c.Path() + "?" + req.URL.RawQuery
	default: // route_query
		id = c.Path() + "?" + req.URL.RawQuery
	}
	sum := sha1.Sum([]byte(id))
	return fmt.Sprintf("%s:%x", cfg.Prefix, sum[:])
}

// Cached entries pack status, headers and body into one value:
// [4B status][4B header length][header JSON][body].
func packEntry(status int, header http.Header, body []byte) ([]byte, error) {
	hdr, err := json.Marshal(header)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 8+len(hdr)+len(body))
	binary.BigEndian.PutUint32(out[0:4], uint32(status))
	binary.BigEndian.PutUint32(out[4:8], uint32(len(hdr)))
	copy(out[8:], hdr)
	copy(out[8+len(hdr):], body)
	return out, nil
}

func unpackEntry(raw []byte) (status int, header http.Header, body []byte, ok bool) {
	if len(raw) < 8 {
		return 0, nil, nil, false
	}
	status = int(binary.BigEndian.Uint32(raw[0:4]))
	hlen := int(binary.BigEndian.Uint32(raw[4:8]))
	if hlen < 0 || 8+hlen > len(raw) {
		return 0, nil, nil, false
	}
	header = make(http.Header)
	if hlen > 0 {
		if err := json.Unmarshal(raw[8:8+hlen], &header); err != nil {
			return 0, nil, nil, false
		}
	}
	return status, header, raw[8+hlen:], true
}

// NewRedisCache caches successful responses on the configured methods,
// replaying headers and body byte for byte. A nil Redis client or a
// disabled config yields a pass-through middleware.
func NewRedisCache(cfg config.CacheConfig, rdb *redis.Client) echo.MiddlewareFunc {
	if !cfg.Enabled || rdb == nil {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 30 * time.Second
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !cfg.Methods[strings.ToUpper(c.Request().Method)] {
				return next(c)
			}

			key := cacheKey(cfg, c)
			if raw, err := rdb.Get(c.Request().Context(), key).Bytes(); err == nil {
				if status, hdr, body, ok := unpackEntry(raw); ok {
					for k, vals := range hdr {
						if strings.EqualFold(k, "Content-Length") {
							continue
						}
						for _, v := range vals {
							c.Response().Header().Add(k, v)
						}
					}
					c.Response().Header().Set("X-Cache", "HIT")
					c.Response().WriteHeader(status)
					_, _ = c.Response().Write(body)
					return nil
				}
			}

			rec := &recorder{
				ResponseWriter: c.Response().Writer,
				status:         http.StatusOK,
				limit:          int64(cfg.MaxBodyBytes),
			}
			c.Response().Writer = rec
			c.Response().Header().Set("X-Cache", "MISS")

			if err := next(c); err != nil {
				return err
			}

			if rec.status == http.StatusOK && !rec.overflow {
				hdr := make(http.Header, len(c.Response().Header()))
				for k, vals := range c.Response().Header() {
					hdr[k] = append([]string(nil), vals...)
				}
				if entry, err := packEntry(rec.status, hdr, rec.buf.Bytes()); err == nil {
					// Detached context: the request may already be done.
					_ = rdb.SetEx(context.Background(), key, entry, ttl).Err()
				}
			}
			return nil
		}
	}
}
