package http

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/gofiber/fiber/v2"

	"github.com/samirrijal/bagfinder/internal/core/domain"
)

// cacheControl maps GET paths to their default Cache-Control value.
var cacheControl = map[string]string{
	"/api/health":            "no-cache",
	"/api/ready":             "no-cache",
	"/metrics":               "no-cache",
	"/api/verblijfsobjecten": "public, max-age=300",
	"/api/gemeenten":         "public, max-age=3600",
	"/docs":                  "public, max-age=3600",
	"/docs/openapi.yaml":     "public, max-age=3600",
}

// CachingMiddleware sets Cache-Control on successful GET responses unless the
// handler already did. Fallback answers are never cached by clients.
func CachingMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		err := c.Next()
		if c.Method() != fiber.MethodGet || c.GetRespHeader(fiber.HeaderCacheControl) != "" {
			return err
		}
		if c.Response().StatusCode() != fiber.StatusOK || c.GetRespHeader(DataSourceHeader) == string(domain.SourceFallback) {
			c.Set(fiber.HeaderCacheControl, "no-store")
			return err
		}
		if v, ok := cacheControl[c.Path()]; ok {
			c.Set(fiber.HeaderCacheControl, v)
		}
		return err
	}
}

// ETagMiddleware sets a weak ETag on 200 GET responses and answers 304 when
// If-None-Match already carries it.
func ETagMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := c.Next(); err != nil {
			return err
		}
		if c.Method() != fiber.MethodGet || c.Response().StatusCode() != fiber.StatusOK {
			return nil
		}

		body := c.Response().Body()
		if len(body) == 0 {
			return nil
		}

		sum := sha256.Sum256(body)
		etag := `W/"` + hex.EncodeToString(sum[:8]) + `"`
		c.Set(fiber.HeaderETag, etag)

		if c.Get(fiber.HeaderIfNoneMatch) == etag {
			c.Status(fiber.StatusNotModified)
			c.Response().ResetBody()
		}
		return nil
	}
}
