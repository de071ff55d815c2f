package api

import (
	"bytes"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-gost/h2engine/pkg/config"
)

type getConfigRequest struct {
	// yaml or json, json by default.
	Format string `form:"format"`
}

func getConfig(ctx *gin.Context) {
	var req getConfigRequest
	ctx.ShouldBindQuery(&req)

	cfg := config.Global()

	switch req.Format {
	case "yaml":
		var buf bytes.Buffer
		if err := cfg.Write(&buf); err != nil {
			writeError(ctx, err)
			return
		}
		ctx.Data(http.StatusOK, "text/x-yaml", buf.Bytes())
	case "json", "":
		ctx.JSON(http.StatusOK, cfg)
	default:
		writeError(ctx, ErrFormat)
	}
}
