// Package transport exposes the pipeline over HTTP.
package transport

import (
	"bytes"
	"encoding/base64"
	"net/http"
	"time"

	apperrors "leaffliction/internal/errors"
	"leaffliction/internal/landmark"
	"leaffliction/internal/logger"
	"leaffliction/internal/pipeline"
	"leaffliction/internal/raster"
	"leaffliction/internal/shape"

	"github.com/gin-gonic/gin"
)

const component = "Transport"

// Artifact is one encoded stage output.
type Artifact struct {
	Stage string `json:"stage"`
	// PNG is the base64 encoded PNG image.
	PNG    string `json:"png"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

type TransformResponse struct {
	Artifacts []Artifact         `json:"artifacts"`
	// Objects is set when analyze was requested, Landmarks when
	// pseudolandmarks was.
	Objects   []shape.Object      `json:"objects,omitempty"`
	Landmarks *landmark.Landmarks `json:"landmarks,omitempty"`
	// TimingsMS holds the computation time of every node, in milliseconds.
	TimingsMS map[string]float64 `json:"timings_ms"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

type Options struct {
	// Pipeline is the base configuration of every request. Its output
	// policy is replaced by Collect.
	Pipeline pipeline.Config
	// MaxRequestBodySize bounds uploads, in bytes.
	MaxRequestBodySize int64
	Logger             logger.Logger
}

type handler struct {
	opts   Options
	loader *pipeline.Loader
	log    logger.Logger
}

func NewHandler(opts Options) http.Handler {
	if opts.Logger == nil {
		opts.Logger = logger.Nop()
	}
	if opts.MaxRequestBodySize <= 0 {
		opts.MaxRequestBodySize = pipeline.MaxUploadBytes
	}
	opts.Pipeline.Output = pipeline.Collect{}
	opts.Pipeline.Logger = opts.Logger

	h := &handler{opts: opts, loader: pipeline.NewLoader(opts.Logger), log: opts.Logger}

	r := gin.New()
	r.Use(gin.Recovery(), h.requestLogger(), requestSizeLimiter(opts.MaxRequestBodySize))

	r.GET("/health", healthCheck)
	r.POST("/transform", h.transform)

	return r
}

func (h *handler) transform(c *gin.Context) {
	stages, err := pipeline.ParseStages(c.Query("stages"))
	if err != nil {
		h.respondError(c, "invalid stages", err)
		return
	}

	file, err := c.FormFile("image")
	if err != nil {
		h.respondError(c, "missing image", apperrors.NewInputError("multipart field image is required", err))
		return
	}
	f, err := file.Open()
	if err != nil {
		h.respondError(c, "cannot read image", apperrors.NewInputError("cannot open upload", err))
		return
	}
	defer f.Close()

	src, err := h.loader.LoadFromReader(f)
	if err != nil {
		h.respondError(c, "cannot decode image", err)
		return
	}

	g, err := pipeline.New(src, h.opts.Pipeline)
	if err != nil {
		src.Close()
		h.respondError(c, "invalid pipeline configuration", err)
		return
	}
	defer g.Close()

	resp, err := h.run(g, stages)
	if err != nil {
		h.respondError(c, "transformation failed", err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *handler) run(g *pipeline.Graph, stages []pipeline.Stage) (*TransformResponse, error) {
	arts, err := g.Get(stages...)
	if err != nil {
		return nil, err
	}

	resp := &TransformResponse{TimingsMS: make(map[string]float64)}
	err = arts.Each(func(s pipeline.Stage, img *raster.Image) error {
		var buf bytes.Buffer
		if err := pipeline.Encode(&buf, img, "png"); err != nil {
			return apperrors.NewIOError(s.String(), "cannot encode artifact", err)
		}
		size := img.Size()
		resp.Artifacts = append(resp.Artifacts, Artifact{
			Stage:  s.String(),
			PNG:    base64.StdEncoding.EncodeToString(buf.Bytes()),
			Width:  size.X,
			Height: size.Y,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	if _, ok := arts.Get(pipeline.Analyze); ok {
		if resp.Objects, err = g.Objects(); err != nil {
			return nil, err
		}
	}
	if _, ok := arts.Get(pipeline.Pseudolandmarks); ok {
		points, err := g.Landmarks()
		if err != nil {
			return nil, err
		}
		resp.Landmarks = &points
	}

	timings := g.Timings()
	for _, op := range timings.Operations() {
		var total time.Duration
		for _, d := range timings.GetTimings(op) {
			total += d
		}
		resp.TimingsMS[op] = float64(total.Microseconds()) / 1000
	}
	return resp, nil
}

func healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "available",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func requestSizeLimiter(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

func (h *handler) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		h.log.Info(component, "request handled", map[string]interface{}{
			"method":      c.Request.Method,
			"path":        c.Request.URL.Path,
			"status":      c.Writer.Status(),
			"duration_ms": time.Since(start).Milliseconds(),
			"ip":          c.ClientIP(),
		})
	}
}

func (h *handler) respondError(c *gin.Context, message string, err error) {
	code := apperrors.GetStatusCode(err)
	h.log.Error(component, err, map[string]interface{}{
		"status_code": code,
		"message":     message,
	})
	c.AbortWithStatusJSON(code, ErrorResponse{Error: message, Message: err.Error()})
}
