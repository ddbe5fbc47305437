package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sifan077/PowerQR/internal/app/model"
	"github.com/sifan077/PowerQR/internal/app/repository"
	"github.com/sifan077/PowerQR/internal/app/service"
	"github.com/sifan077/PowerQR/internal/backend"
	"github.com/sifan077/PowerQR/internal/http/middleware"
	"github.com/sifan077/PowerQR/internal/render"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeBackend answers the short-link API from memory.
type fakeBackend struct {
	mu         sync.Mutex
	links      []model.Link
	created    []backend.CreateLinkRequest
	edited     []backend.EditLinkRequest
	rejectAll  bool
	usersFail  bool
	deleteFail string
}

func (f *fakeBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	reply := func(status int, isErr bool, message any) {
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(map[string]any{"error": isErr, "message": message})
	}

	if r.URL.Path == "/api/users/auth" {
		reply(http.StatusOK, false, "tok-1")
		return
	}
	if f.rejectAll || r.Header.Get("login") != "tok-1" {
		reply(http.StatusUnauthorized, true, "invalid login")
		return
	}

	switch r.URL.Path {
	case "/api/users/me":
		reply(http.StatusOK, false, map[string]any{"username": "operator", "level": 2})
	case "/api/links/list", "/api/siteadmin/links/list":
		reply(http.StatusOK, false, f.links)
	case "/api/siteadmin/users/list":
		if f.usersFail {
			reply(http.StatusInternalServerError, true, "user table locked")
			return
		}
		reply(http.StatusOK, false, []map[string]any{{"username": "operator", "level": 2}})
	case "/api/links/create":
		var req backend.CreateLinkRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		f.created = append(f.created, req)
		reply(http.StatusOK, false, "ok")
	case "/api/links/edit":
		var req backend.EditLinkRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		f.edited = append(f.edited, req)
		reply(http.StatusOK, false, "ok")
	case "/api/links/delete":
		if f.deleteFail != "" {
			reply(http.StatusBadRequest, true, f.deleteFail)
			return
		}
		reply(http.StatusOK, false, "ok")
	default:
		reply(http.StatusNotFound, true, "not found")
	}
}

func (f *fakeBackend) update(fn func(f *fakeBackend)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(f)
}

func (f *fakeBackend) requests() ([]backend.CreateLinkRequest, []backend.EditLinkRequest) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]backend.CreateLinkRequest(nil), f.created...), append([]backend.EditLinkRequest(nil), f.edited...)
}

func tinyPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			img.Set(x, y, color.RGBA{R: 255, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

type testApp struct {
	app     *fiber.App
	backend *fakeBackend
}

func newTestApp(t *testing.T, checks map[string]CheckFunc) *testApp {
	t.Helper()

	fb := &fakeBackend{}
	srv := httptest.NewServer(fb)
	t.Cleanup(srv.Close)

	api := backend.NewHTTPClient(srv.URL, 5*time.Second, nil)
	sizing := service.DefaultSizingPolicy()
	adapter := service.NewPersistenceAdapter(sizing, nil)
	guard := service.NewSessionGuard(api, repository.NewMemoryKVStore(), nil)
	links := service.NewLinkService(api, guard, adapter, "https://s.example.com")
	admin := service.NewAdminService(api, guard, links, nil)
	engine := render.NewRasterEngine(render.RasterEngineConfig{MinPx: service.EngineMinPx, MaxPx: service.ExportMaxPx},
		render.NewLogoLoader(render.LogoLoaderConfig{}, nil, nil), nil)
	pipeline := service.NewExportPipeline(engine, sizing, nil, nil, nil)
	editor := service.NewEditorService(links, service.NewResolver(sizing), pipeline, adapter, time.Minute, nil)
	t.Cleanup(editor.CloseAll)

	app := fiber.New()
	app.Use(middleware.RequestID())
	NewHealthHandler(HealthDeps{Checks: checks}).Register(app)
	NewAPIHandler(APIDeps{Guard: guard, LinkService: links, Admin: admin}).Register(app)
	NewAdminHandler(admin, nil).Register(app)
	NewEditorHandler(EditorDeps{Editor: editor, MaxLogoBytes: 1 << 16}).Register(app)

	return &testApp{app: app, backend: fb}
}

func (a *testApp) do(t *testing.T, method, path string, body any) (*http.Response, Envelope) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return a.send(t, req)
}

func (a *testApp) send(t *testing.T, req *http.Request) (*http.Response, Envelope) {
	t.Helper()
	resp, err := a.app.Test(req, 10_000)
	require.NoError(t, err)

	var env Envelope
	if strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	}
	return resp, env
}

func (a *testApp) login(t *testing.T) {
	t.Helper()
	resp, env := a.do(t, http.MethodPost, "/auth/login", LoginRequest{Username: "operator", Password: "secret"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.False(t, env.Error)
}

func storedStyle(t *testing.T) json.RawMessage {
	t.Helper()
	desc := model.DefaultStyle()
	desc.ModuleShape = model.ModuleDots
	raw, err := service.NewPersistenceAdapter(service.DefaultSizingPolicy(), nil).ToPersisted(desc)
	require.NoError(t, err)
	return raw
}

func TestLoginAndListLinks(t *testing.T) {
	a := newTestApp(t, nil)
	a.backend.update(func(f *fakeBackend) { f.links = []model.Link{{ID: "abc", Content: "https://example.com", QRInfo: storedStyle(t)}} })

	a.login(t)
	resp, env := a.do(t, http.MethodGet, "/links", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	list, ok := env.Message.([]any)
	require.True(t, ok)
	require.Len(t, list, 1)
	link := list[0].(map[string]any)
	assert.Equal(t, "https://s.example.com/abc", link["shortUrl"])
	assert.Equal(t, "dots", link["style"].(map[string]any)["dotsType"])
}

func TestLoginValidation(t *testing.T) {
	a := newTestApp(t, nil)
	resp, env := a.do(t, http.MethodPost, "/auth/login", LoginRequest{Username: "operator"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.True(t, env.Error)
	assert.Equal(t, "password: password is required", env.Message)
}

func TestNoSessionAsksForRelogin(t *testing.T) {
	a := newTestApp(t, nil)
	resp, env := a.do(t, http.MethodGet, "/links", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.True(t, env.Relogin)
}

func TestBackendRejectionDropsSession(t *testing.T) {
	a := newTestApp(t, nil)
	a.login(t)
	a.backend.update(func(f *fakeBackend) { f.rejectAll = true })

	resp, env := a.do(t, http.MethodGet, "/links", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.True(t, env.Relogin)

	a.backend.update(func(f *fakeBackend) { f.rejectAll = false })
	resp, _ = a.do(t, http.MethodGet, "/me", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestBackendMessageVerbatim(t *testing.T) {
	a := newTestApp(t, nil)
	a.login(t)
	a.backend.update(func(f *fakeBackend) { f.deleteFail = "link does not belong to you" })

	resp, env := a.do(t, http.MethodPost, "/links/abc/delete", nil)
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	assert.Equal(t, "link does not belong to you", env.Message)
}

func TestAdminOverviewPartialFailure(t *testing.T) {
	a := newTestApp(t, nil)
	a.backend.update(func(f *fakeBackend) { f.links = []model.Link{{ID: "abc", Content: "https://example.com"}} })
	a.backend.update(func(f *fakeBackend) { f.usersFail = true })
	a.login(t)

	resp, env := a.do(t, http.MethodGet, "/admin/overview", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.False(t, env.Error)
	assert.Contains(t, env.Warning, "user table locked")

	msg := env.Message.(map[string]any)
	assert.Len(t, msg["links"], 1)
	assert.Nil(t, msg["users"])
}

func TestAdminCannotDeleteSelf(t *testing.T) {
	a := newTestApp(t, nil)
	a.login(t)

	resp, env := a.do(t, http.MethodPost, "/admin/users/operator/delete", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.True(t, env.Error)
}

func TestEditorCreateFlow(t *testing.T) {
	a := newTestApp(t, nil)
	a.login(t)

	resp, env := a.do(t, http.MethodPost, "/editor", nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	sid := env.Message.(map[string]any)["id"].(string)

	resp, env = a.do(t, http.MethodPatch, "/editor/"+sid, map[string]any{
		"dotsType": "dots",
		"content":  "https://example.com",
		"slug":     "promo",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, env.Message)
	assert.Equal(t, "https://s.example.com/promo", env.Message.(map[string]any)["shortUrl"])

	resp, _ = a.do(t, http.MethodGet, "/editor/"+sid+"/preview", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))
	img, err := png.Decode(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, 320, img.Bounds().Dx())

	resp, _ = a.do(t, http.MethodGet, "/editor/"+sid+"/export?format=svg", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/svg+xml", resp.Header.Get("Content-Type"))
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "qrcode.svg")

	resp, _ = a.do(t, http.MethodGet, "/editor/"+sid+"/export?format=webp&size=300", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/webp", resp.Header.Get("Content-Type"))
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "qrcode.webp")

	resp, _ = a.do(t, http.MethodGet, "/editor/"+sid+"/export?format=png&size=abc", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = a.do(t, http.MethodPost, "/editor/"+sid+"/save", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	created, _ := a.backend.requests()
	require.Len(t, created, 1)
	assert.Equal(t, "promo", created[0].LinkID)
	assert.Contains(t, string(created[0].QRInfo), `"dotsType":"dots"`)

	resp, _ = a.do(t, http.MethodDelete, "/editor/"+sid, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp, _ = a.do(t, http.MethodDelete, "/editor/"+sid, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestEditorEditFlow(t *testing.T) {
	a := newTestApp(t, nil)
	a.backend.update(func(f *fakeBackend) { f.links = []model.Link{{ID: "abc", Content: "https://example.com", QRInfo: storedStyle(t)}} })
	a.login(t)

	resp, env := a.do(t, http.MethodPost, "/editor", OpenEditorRequest{LinkID: "abc"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	snap := env.Message.(map[string]any)
	sid := snap["id"].(string)
	assert.Equal(t, "abc", snap["save"].(map[string]any)["linkid"])

	resp, _ = a.do(t, http.MethodPatch, "/editor/"+sid, map[string]any{"slug": "abc-2"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = a.do(t, http.MethodPost, "/editor/"+sid+"/save", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	_, edited := a.backend.requests()
	require.Len(t, edited, 1)
	assert.Equal(t, "abc", edited[0].LinkID)
	assert.Equal(t, "abc-2", edited[0].NewLinkID)
	assert.Equal(t, "https://example.com", edited[0].Content)

	resp, _ = a.do(t, http.MethodGet, "/editor/"+sid, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestEditorInvalidPatch(t *testing.T) {
	a := newTestApp(t, nil)
	a.login(t)

	_, env := a.do(t, http.MethodPost, "/editor", nil)
	sid := env.Message.(map[string]any)["id"].(string)

	resp, env := a.do(t, http.MethodPatch, "/editor/"+sid, map[string]any{"errorCorrection": "Z"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.True(t, env.Error)
}

func TestEditorLogoUpload(t *testing.T) {
	a := newTestApp(t, nil)
	a.login(t)

	_, env := a.do(t, http.MethodPost, "/editor", nil)
	sid := env.Message.(map[string]any)["id"].(string)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", `form-data; name="logo"; filename="logo.png"`)
	header.Set("Content-Type", "image/png")
	part, err := mw.CreatePart(header)
	require.NoError(t, err)
	_, err = part.Write(tinyPNG(t))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/editor/"+sid+"/logo", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	resp, env := a.send(t, req)
	require.Equal(t, http.StatusOK, resp.StatusCode, env.Message)

	logo := env.Message.(map[string]any)["state"].(map[string]any)["logo"].(string)
	assert.True(t, strings.HasPrefix(logo, "data:image/png;base64,"))
}

func TestExportSavedLink(t *testing.T) {
	a := newTestApp(t, nil)
	a.backend.update(func(f *fakeBackend) { f.links = []model.Link{{ID: "abc", Content: "https://example.com", QRInfo: storedStyle(t)}} })
	a.login(t)

	resp, _ := a.do(t, http.MethodGet, "/links/abc/qr.png?size=300", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "300", resp.Header.Get("X-QR-Size"))
	img, err := png.Decode(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, 300, img.Bounds().Dx())

	resp, _ = a.do(t, http.MethodGet, "/links/missing/qr.png", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = a.do(t, http.MethodGet, "/links/abc/qr.gif", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestReadiness(t *testing.T) {
	a := newTestApp(t, map[string]CheckFunc{
		"backend": func(context.Context) error { return nil },
		"redis":   func(context.Context) error { return errors.New("connection refused") },
	})

	resp, env := a.do(t, http.MethodGet, "/ready", nil)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	results := env.Message.([]any)
	require.Len(t, results, 2)
	assert.Equal(t, "backend", results[0].(map[string]any)["name"])
	assert.Equal(t, "connection refused", results[1].(map[string]any)["error"])

	resp, _ = a.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
