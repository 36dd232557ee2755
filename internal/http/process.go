package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/AutumnsGrove/FableParser/internal/entities"
	"github.com/AutumnsGrove/FableParser/internal/pipeline"
	"github.com/AutumnsGrove/FableParser/internal/vision"
)

const (
	maxImageSize          = 20 * 1024 * 1024 // 20 MB
	defaultProcessTimeout = 5 * time.Minute
)

// ProcessorBuilder assembles a pipeline processor with the requested
// mirror sinks. The web form lets users toggle mirrors per upload, so the
// processor is built per request rather than once at startup.
type ProcessorBuilder func(raindrop, vault bool) *pipeline.Processor

// ProcessController handles screenshot uploads.
type ProcessController struct {
	build           ProcessorBuilder
	raindropEnabled bool
	vaultEnabled    bool
	timeout         time.Duration
}

func NewProcessController(build ProcessorBuilder, raindropEnabled, vaultEnabled bool, timeout time.Duration) *ProcessController {
	if timeout <= 0 {
		timeout = defaultProcessTimeout
	}
	return &ProcessController{
		build:           build,
		raindropEnabled: raindropEnabled,
		vaultEnabled:    vaultEnabled,
		timeout:         timeout,
	}
}

// Process handles POST /api/process
func (pc *ProcessController) Process(c *gin.Context) {
	file, header, err := c.Request.FormFile("image")
	if err != nil {
		respondBadRequest(c, "image file not provided")
		return
	}
	defer file.Close()

	if header.Size > maxImageSize {
		respondBadRequest(c, fmt.Sprintf("file too large (max %d MB)", maxImageSize/(1024*1024)))
		return
	}

	mediaType, err := vision.DetectMediaType(header.Filename)
	if err != nil {
		respondBadRequest(c, "unsupported image type (png, jpeg, webp or gif)")
		return
	}

	data, err := io.ReadAll(io.LimitReader(file, maxImageSize+1))
	if err != nil {
		respondInternalError(c, err, "read upload")
		return
	}
	if int64(len(data)) > maxImageSize {
		respondBadRequest(c, fmt.Sprintf("file too large (max %d MB)", maxImageSize/(1024*1024)))
		return
	}

	// Mirrors run only when configured at startup and requested here.
	useRaindrop := pc.raindropEnabled && c.PostForm("raindrop") != "false"
	useVault := pc.vaultEnabled && c.PostForm("vault") != "false"

	processor := pc.build(useRaindrop, useVault)

	ctx, cancel := context.WithTimeout(c.Request.Context(), pc.timeout)
	defer cancel()

	summary, err := processor.ProcessImage(ctx, vision.Image{
		Data:      data,
		MediaType: mediaType,
		Name:      header.Filename,
	}, entities.TriggerWeb)
	if err != nil {
		switch {
		case errors.Is(err, vision.ErrNoBooksFound):
			respondBadRequest(c, "no books detected in the screenshot")
		case errors.Is(err, vision.ErrInvalidAPIKey):
			respondInternalError(c, err, "vision auth")
		default:
			respondInternalError(c, err, "process image")
		}
		return
	}

	c.IndentedJSON(http.StatusOK, summary)
}
