package server

import (
	"errors"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/loykin/launchr/internal/apperr"
)

func sanitizeBase(bp string) string {
	bp = strings.TrimSpace(bp)
	if bp == "" || bp == "/" {
		return ""
	}
	if !strings.HasPrefix(bp, "/") {
		bp = "/" + bp
	}
	return strings.TrimRight(bp, "/")
}

// respond writes the envelope; the status code follows the error kind.
func respond(c *gin.Context, data any, err error) {
	if err != nil {
		c.JSON(apperr.HTTPStatus(apperr.KindOf(err)), apperr.Fail(err))
		return
	}
	c.JSON(apperr.HTTPStatus(""), apperr.OK(data))
}

// bind decodes the JSON body into v. With optional set an empty body is accepted.
func bind(c *gin.Context, v any, optional bool) bool {
	err := c.ShouldBindJSON(v)
	if err == nil || (optional && errors.Is(err, io.EOF)) {
		return true
	}
	respond(c, nil, apperr.Invalid("invalid JSON body: "+err.Error(), err))
	return false
}

func requestLogger(log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug("rpc request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start))
	}
}
