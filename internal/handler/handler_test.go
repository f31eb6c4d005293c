package handler_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"vfxpublish/internal/auth"
	"vfxpublish/internal/handler"
	"vfxpublish/internal/repository"
	"vfxpublish/internal/service"
	"vfxpublish/internal/service/versioning"
	"vfxpublish/internal/testsupport"
	"vfxpublish/internal/usd"
)

type apiFixture struct {
	work      string
	folders   *service.FolderService
	publisher *service.PublishService
	router    http.Handler
}

func newAPIFixture(t *testing.T, tokens ...string) *apiFixture {
	t.Helper()
	logger := zaptest.NewLogger(t)
	db := testsupport.OpenSQLite(t)

	folderRepo := repository.NewFolderRepository(db)
	entities := repository.NewEntityRepository(db, logger)
	reconciler := service.NewReconciler(entities, entities, repository.NewAttributeRepository(db), logger)
	scanner, err := versioning.NewScanner(versioning.DefaultPattern)
	require.NoError(t, err)

	work := t.TempDir()
	publisher, err := service.NewPublishService(folderRepo, reconciler, scanner, usd.NewFileWriter(),
		service.PublishSettings{Roots: map[string]string{"work": work}}, logger)
	require.NoError(t, err)
	folders := service.NewFolderService(folderRepo, logger)

	router := handler.NewRouter(handler.RouterDeps{
		Publish:  handler.NewPublishHandler(publisher, logger),
		Folders:  handler.NewFolderHandler(folders, logger),
		Query:    handler.NewQueryHandler(folderRepo, entities, logger),
		Verifier: auth.NewVerifier(tokens),
		Logger:   logger,
	})
	return &apiFixture{work: work, folders: folders, publisher: publisher, router: router}
}

func (f *apiFixture) do(t *testing.T, method, target string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if raw, ok := body.(string); ok {
			buf.WriteString(raw)
		} else {
			require.NoError(t, json.NewEncoder(&buf).Encode(body))
		}
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func publishBody(folderPath string, files ...string) map[string]any {
	return map[string]any{
		"project_name": "demo",
		"folder_path":  folderPath,
		"product_type": "usd",
		"author":       "alice",
		"comment":      "first pass",
		"time":         "20261019T120000Z",
		"published_representations": []map[string]any{
			{"name": "geo", "published_files": files},
		},
	}
}

func TestPublishAndQueryRoundTrip(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, http.MethodPost, "/v1/projects/demo/folders", map[string]any{"path": "/assets/characters/hero"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "/assets/characters/hero", decodeBody(t, rec)["path"])

	rec = f.do(t, http.MethodPost, "/v1/publish", publishBody("/assets/characters/hero", "/pub/a.usd", "/pub/b.usd"))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	result := decodeBody(t, rec)
	assert.Equal(t, float64(1), result["version"])
	wantRoot := filepath.Join(f.work, "demo", "assets", "characters", "hero", "publish", "usd", "hero_USD_v00001.usda")
	assert.Equal(t, wantRoot, result["root_path"])
	assert.FileExists(t, wantRoot)

	rec = f.do(t, http.MethodGet, "/v1/projects/demo/products?folder_path=/assets/characters/hero", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	products := decodeBody(t, rec)["items"].([]any)
	require.Len(t, products, 1)
	product := products[0].(map[string]any)
	assert.Equal(t, "usd_root", product["name"])
	assert.Equal(t, result["product_id"], product["id"])

	rec = f.do(t, http.MethodGet, "/v1/projects/demo/products/"+product["id"].(string)+"/versions", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	versions := decodeBody(t, rec)["items"].([]any)
	require.Len(t, versions, 1)
	version := versions[0].(map[string]any)
	assert.Equal(t, float64(1), version["version"])
	assert.Equal(t, wantRoot, version["attrib"].(map[string]any)["source"])

	rec = f.do(t, http.MethodGet, "/v1/projects/demo/versions/"+version["id"].(string)+"/representations", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	repres := decodeBody(t, rec)["items"].([]any)
	require.Len(t, repres, 1)
	assert.Equal(t, "usd", repres[0].(map[string]any)["name"])

	rec = f.do(t, http.MethodGet, "/v1/projects/demo/folders?path=/assets", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	children := decodeBody(t, rec)["folders"].([]any)
	require.Len(t, children, 1)
	assert.Equal(t, "characters", children[0].(map[string]any)["name"])

	rec = f.do(t, http.MethodPost, "/v1/publish", publishBody("/assets/characters/hero", "/pub/a.usd"))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, float64(2), decodeBody(t, rec)["version"])
}

func TestPublishErrors(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, http.MethodPost, "/v1/publish", publishBody("/assets/missing", "/pub/a.usd"))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, decodeBody(t, rec)["error"], "folder not found")

	rec = f.do(t, http.MethodPost, "/v1/publish", `{"project_name": `)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPost, "/v1/publish", `{"unknown": true}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	body := publishBody("/assets/hero", "/pub/a.usd")
	delete(body, "product_type")
	rec = f.do(t, http.MethodPost, "/v1/publish", body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPost, "/v1/publish", publishBody("/assets/hero"))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decodeBody(t, rec)["skipped"])

	rec = f.do(t, http.MethodGet, "/v1/projects/demo/products", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodGet, "/v1/projects/demo/products?folder_path=/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, http.MethodPost, "/v1/projects/demo/folders", map[string]any{"path": "/"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAuthentication(t *testing.T) {
	f := newAPIFixture(t, "pipeline:s3cret")
	_, err := f.folders.EnsurePath(t.Context(), "demo", "/assets/hero")
	require.NoError(t, err)

	rec := f.do(t, http.MethodPost, "/v1/publish", publishBody("/assets/hero", "/pub/a.usd"))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	body := publishBody("/assets/hero", "/pub/a.usd")
	delete(body, "author")
	rec = f.do(t, http.MethodPost, "/v1/publish", body, "Authorization", "Bearer s3cret")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = f.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "vfxpublish_publish_runs_total")
}
