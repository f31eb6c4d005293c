package handler_test

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"vfxpublish/internal/handler"
	"vfxpublish/internal/service/s3"
)

type memObject struct {
	io.Reader
	size int64
}

func (o *memObject) Close() error         { return nil }
func (o *memObject) ContentLength() int64 { return o.size }
func (o *memObject) ContentType() string  { return "text/plain" }

type memLayers struct {
	objects map[string]string
	keys    []string
}

func (m *memLayers) GetObject(_ context.Context, key string) (s3.S3Object, error) {
	m.keys = append(m.keys, key)
	content, ok := m.objects[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", s3.ErrObjectNotFound, key)
	}
	return &memObject{Reader: strings.NewReader(content), size: int64(len(content))}, nil
}

func TestGetLayer(t *testing.T) {
	logger := zaptest.NewLogger(t)
	layers := &memLayers{objects: map[string]string{
		"demo/assets/characters/hero/hero_USD_v00001.usda": "#usda 1.0\n",
	}}
	router := handler.NewRouter(handler.RouterDeps{
		Layers: handler.NewLayerHandler(layers, logger),
		Logger: logger,
	})

	get := func(target string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
		return rec
	}

	rec := get("/v1/projects/demo/layers/assets/characters/hero/hero_USD_v00001.usda")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "#usda 1.0\n", rec.Body.String())
	assert.Equal(t, "text/plain", rec.Header().Get("Content-Type"))
	assert.Equal(t, "10", rec.Header().Get("Content-Length"))

	rec = get("/v1/projects/demo/layers/assets/missing.usda")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = get("/v1/projects/demo/layers/")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = get("/v1/projects/demo/layers/../other/secret.usda")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	for _, key := range layers.keys {
		assert.True(t, strings.HasPrefix(key, "demo/"), key)
	}
}

func TestLayersRouteNeedsMirror(t *testing.T) {
	router := handler.NewRouter(handler.RouterDeps{Logger: zaptest.NewLogger(t)})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/projects/demo/layers/a.usda", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
