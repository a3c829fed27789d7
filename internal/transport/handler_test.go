package transport

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"leaffliction/internal/pipeline"
	"leaffliction/internal/raster"
	"leaffliction/internal/rembg"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func leafPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 96, 96))
	for y := 0; y < 96; y++ {
		for x := 0; x < 96; x++ {
			c := color.RGBA{R: 20, G: 20, B: 20, A: 255}
			if x >= 30 && x < 60 && y >= 30 && y < 60 {
				c = color.RGBA{R: 40, G: 170, B: 50, A: 255}
			}
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func upload(t *testing.T, h http.Handler, query string, field string, data []byte) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if field != "" {
		part, err := mw.CreateFormFile(field, "leaf.png")
		require.NoError(t, err)
		_, err = part.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/transform"+query, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func newHandler(remover rembg.BackgroundRemover) http.Handler {
	cfg := pipeline.DefaultConfig()
	cfg.Remover = remover
	return NewHandler(Options{Pipeline: cfg})
}

func TestHealth(t *testing.T) {
	rec := httptest.NewRecorder()
	newHandler(nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "available")
}

func TestTransformRequestedStages(t *testing.T) {
	rec := upload(t, newHandler(nil), "?stages=roi,analyze,pseudolandmarks", "image", leafPNG(t))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp TransformResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	require.Len(t, resp.Artifacts, 3)
	assert.Equal(t, "roi", resp.Artifacts[0].Stage)
	assert.Equal(t, "analyze", resp.Artifacts[1].Stage)

	data, err := base64.StdEncoding.DecodeString(resp.Artifacts[0].PNG)
	require.NoError(t, err)
	decoded, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, image.Pt(96, 96), decoded.Bounds().Size())
	assert.Equal(t, 96, resp.Artifacts[0].Width)

	require.Len(t, resp.Objects, 1)
	require.NotNil(t, resp.Landmarks)
	assert.Equal(t, 20, resp.Landmarks.Len())
	assert.Contains(t, resp.TimingsMS, "foreground")
}

func TestTransformComputesOnlyRequestedStages(t *testing.T) {
	failing := rembg.Func(func(*raster.Image) (*raster.Image, error) {
		return nil, errors.New("model unavailable")
	})

	rec := upload(t, newHandler(failing), "?stages=original", "image", leafPNG(t))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp TransformResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Artifacts, 1)
	assert.Equal(t, "original", resp.Artifacts[0].Stage)
	assert.Empty(t, resp.Objects)
	assert.Nil(t, resp.Landmarks)
	assert.NotContains(t, resp.TimingsMS, "foreground")
}

func TestTransformAnalyzeLeavesLandmarksOut(t *testing.T) {
	rec := upload(t, newHandler(nil), "?stages=analyze", "image", leafPNG(t))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp TransformResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Objects, 1)
	assert.Nil(t, resp.Landmarks)
	assert.NotContains(t, resp.TimingsMS, "pseudolandmarks")
}

func TestTransformDefaultStages(t *testing.T) {
	rec := upload(t, newHandler(nil), "", "image", leafPNG(t))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp TransformResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Artifacts, len(pipeline.DefaultStages()))
}

func TestTransformErrors(t *testing.T) {
	failing := rembg.Func(func(*raster.Image) (*raster.Image, error) {
		return nil, errors.New("model unavailable")
	})

	tests := []struct {
		name    string
		handler http.Handler
		query   string
		field   string
		data    []byte
		want    int
	}{
		{name: "missing field", handler: newHandler(nil), field: "", want: http.StatusBadRequest},
		{name: "unknown stage", handler: newHandler(nil), query: "?stages=leaf", field: "image", data: leafPNG(t), want: http.StatusBadRequest},
		{name: "undecodable image", handler: newHandler(nil), field: "image", data: []byte("not an image"), want: http.StatusBadRequest},
		{name: "remover failure", handler: newHandler(failing), field: "image", data: leafPNG(t), want: http.StatusUnprocessableEntity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := upload(t, tt.handler, tt.query, tt.field, tt.data)
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())

			var resp ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.NotEmpty(t, resp.Error)
		})
	}
}
