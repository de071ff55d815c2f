package api

import (
	"crypto/subtle"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-gost/h2engine/pkg/logger"
)

func mwLogger(log logger.Logger) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		start := time.Now()
		ctx.Next()

		code := ctx.Writer.Status()
		entry := log.WithFields(map[string]any{
			"kind":     "api",
			"method":   ctx.Request.Method,
			"uri":      ctx.Request.RequestURI,
			"code":     code,
			"client":   ctx.ClientIP(),
			"duration": time.Since(start),
		})
		if len(ctx.Errors) > 0 {
			entry.Warnf("%s %s: %d %s", ctx.Request.Method, ctx.Request.RequestURI, code, ctx.Errors.String())
			return
		}
		entry.Infof("%s %s: %d", ctx.Request.Method, ctx.Request.RequestURI, code)
	}
}

func mwBasicAuth(username, password string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if username == "" {
			return
		}
		u, p, _ := c.Request.BasicAuth()
		if subtle.ConstantTimeCompare([]byte(u), []byte(username)) != 1 ||
			subtle.ConstantTimeCompare([]byte(p), []byte(password)) != 1 {
			c.Header("WWW-Authenticate", `Basic realm="h2engine"`)
			c.AbortWithStatus(http.StatusUnauthorized)
		}
	}
}
