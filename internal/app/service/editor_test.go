package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/sifan077/PowerQR/internal/app/model"
	"github.com/sifan077/PowerQR/internal/app/repository"
	"github.com/sifan077/PowerQR/internal/backend"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T { return &v }

func newTestEditor(t *testing.T, api *mockBackend, ttl time.Duration) (*EditorService, *fakeEngine) {
	t.Helper()
	guard := NewSessionGuard(api, repository.NewMemoryKVStore(), nil)
	_, err := guard.Login(context.Background(), "operator", "secret")
	require.NoError(t, err)

	sizing := DefaultSizingPolicy()
	adapter := NewPersistenceAdapter(sizing, nil)
	links := NewLinkService(api, guard, adapter, "https://s.example.com")
	engine := &fakeEngine{}
	pipeline := NewExportPipeline(engine, sizing, nil, nil, nil)
	editor := NewEditorService(links, NewResolver(sizing), pipeline, adapter, ttl, nil)
	t.Cleanup(editor.CloseAll)
	return editor, engine
}

func storedLink(t *testing.T) model.Link {
	t.Helper()
	adapter := NewPersistenceAdapter(DefaultSizingPolicy(), nil)
	desc := model.DefaultStyle()
	desc.ModuleShape = model.ModuleDots
	desc.PreviewSizePx = 300
	raw, err := adapter.ToPersisted(desc)
	require.NoError(t, err)
	return model.Link{ID: "abc", Content: "https://example.com", QRInfo: raw}
}

func TestEditor_OpenNewDraft(t *testing.T) {
	editor, engine := newTestEditor(t, &mockBackend{}, time.Minute)

	snap, err := editor.Open(context.Background(), "")
	require.NoError(t, err)

	assert.True(t, snap.Save.IsNew())
	assert.Equal(t, "https://s.example.com/preview", snap.ShortURL)
	assert.Equal(t, "https://s.example.com/preview", snap.Config.Data)
	assert.Equal(t, DefaultNewLinkPreviewPx, snap.Config.Width)
	assert.Equal(t, DefaultExportSizePx, snap.ExportSizePx)
	assert.Equal(t, model.DefaultModuleShape, snap.State.ModuleShape)
	assert.Equal(t, int64(1), engine.live.Load())
}

func TestEditor_OpenExistingBindsSaveRequest(t *testing.T) {
	link := storedLink(t)
	api := &mockBackend{
		listLinksFn: func(ctx context.Context, token string) ([]model.Link, error) {
			return []model.Link{link}, nil
		},
	}
	editor, _ := newTestEditor(t, api, time.Minute)

	snap, err := editor.Open(context.Background(), "abc")
	require.NoError(t, err)

	assert.Equal(t, SaveRequest{LinkID: "abc", OriginalContent: "https://example.com"}, snap.Save)
	assert.Equal(t, "https://example.com", snap.Content)
	assert.Equal(t, model.ModuleDots, snap.State.ModuleShape)
	assert.Equal(t, 300, snap.Config.Width)
	assert.Equal(t, "https://s.example.com/abc", snap.Config.Data)
}

func TestEditor_OpenUnknownLink(t *testing.T) {
	editor, engine := newTestEditor(t, &mockBackend{}, time.Minute)

	_, err := editor.Open(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrLinkNotFound)
	assert.Zero(t, engine.live.Load())
}

func TestEditor_UpdateRerendersAndReleasesOldPreview(t *testing.T) {
	editor, engine := newTestEditor(t, &mockBackend{}, time.Minute)
	snap, err := editor.Open(context.Background(), "")
	require.NoError(t, err)

	snap, err = editor.Update(context.Background(), snap.ID, EditorUpdate{
		EditorPatch: model.EditorPatch{ModuleShape: ptr("dots")},
		Slug:        ptr("promo"),
	})
	require.NoError(t, err)

	assert.Equal(t, model.ModuleDots, snap.State.ModuleShape)
	assert.Equal(t, "https://s.example.com/promo", snap.Config.Data)
	assert.Equal(t, int64(2), engine.created.Load())
	assert.Equal(t, int64(1), engine.live.Load())
}

func TestEditor_UpdateWithoutVisualChangeKeepsPreview(t *testing.T) {
	editor, engine := newTestEditor(t, &mockBackend{}, time.Minute)
	snap, err := editor.Open(context.Background(), "")
	require.NoError(t, err)

	snap, err = editor.Update(context.Background(), snap.ID, EditorUpdate{
		Content:      ptr("https://example.com"),
		ExportSizePx: ptr(9000),
	})
	require.NoError(t, err)

	assert.Equal(t, "https://example.com", snap.Content)
	assert.Equal(t, ExportMaxPx, snap.ExportSizePx)
	assert.Equal(t, int64(1), engine.created.Load())
}

func TestEditor_InvalidUpdateChangesNothing(t *testing.T) {
	editor, engine := newTestEditor(t, &mockBackend{}, time.Minute)
	opened, err := editor.Open(context.Background(), "")
	require.NoError(t, err)

	_, err = editor.Update(context.Background(), opened.ID, EditorUpdate{
		EditorPatch: model.EditorPatch{ModuleShape: ptr("dots"), ErrorCorrection: ptr("Z")},
		Content:     ptr("https://example.com"),
	})
	var ve *model.ValidationError
	require.ErrorAs(t, err, &ve)

	_, err = editor.Update(context.Background(), opened.ID, EditorUpdate{Slug: ptr("a/b")})
	require.ErrorAs(t, err, &ve)

	snap, err := editor.Get(opened.ID)
	require.NoError(t, err)
	assert.Equal(t, opened.State, snap.State)
	assert.Empty(t, snap.Content)
	assert.Empty(t, snap.Slug)
	assert.Equal(t, int64(1), engine.created.Load())
}

func TestEditor_RenderFailureKeepsOldPreview(t *testing.T) {
	editor, engine := newTestEditor(t, &mockBackend{}, time.Minute)
	opened, err := editor.Open(context.Background(), "")
	require.NoError(t, err)

	engine.renderErr = assert.AnError
	_, err = editor.Update(context.Background(), opened.ID, EditorUpdate{
		EditorPatch: model.EditorPatch{ModuleShape: ptr("square")},
	})
	var rf *model.RenderFailure
	require.ErrorAs(t, err, &rf)
	engine.renderErr = nil

	snap, err := editor.Get(opened.ID)
	require.NoError(t, err)
	assert.Equal(t, opened.State.ModuleShape, snap.State.ModuleShape)
	assert.Equal(t, int64(1), engine.live.Load())

	png, err := editor.PreviewImage(context.Background(), opened.ID)
	require.NoError(t, err)
	assert.Equal(t, "png@320", string(png))
}

func TestEditor_Reset(t *testing.T) {
	editor, _ := newTestEditor(t, &mockBackend{}, time.Minute)
	opened, err := editor.Open(context.Background(), "")
	require.NoError(t, err)

	_, err = editor.Update(context.Background(), opened.ID, EditorUpdate{
		EditorPatch:  model.EditorPatch{Size: ptr(500), ModuleShape: ptr("classy"), FgColor: ptr("#ff0000")},
		Content:      ptr("https://example.com"),
		ExportSizePx: ptr(2048),
	})
	require.NoError(t, err)

	snap, err := editor.Reset(context.Background(), opened.ID)
	require.NoError(t, err)

	assert.Equal(t, model.NewLinkEditorState(DefaultNewLinkPreviewPx), snap.State)
	assert.Equal(t, DefaultExportSizePx, snap.ExportSizePx)
	assert.Equal(t, DefaultNewLinkPreviewPx, snap.Config.Width)
	assert.Equal(t, "https://example.com", snap.Content)
}

func TestEditor_SetLogo(t *testing.T) {
	editor, _ := newTestEditor(t, &mockBackend{}, time.Minute)
	opened, err := editor.Open(context.Background(), "")
	require.NoError(t, err)

	_, err = editor.SetLogo(context.Background(), opened.ID, "text/plain", []byte("hi"))
	var ve *model.ValidationError
	require.ErrorAs(t, err, &ve)

	snap, err := editor.SetLogo(context.Background(), opened.ID, "image/png", []byte{0x89, 'P', 'N', 'G'})
	require.NoError(t, err)
	assert.Equal(t, "data:image/png;base64,iVBORw==", snap.State.Logo)
	assert.Equal(t, snap.State.Logo, snap.Config.LogoURI)
}

func TestEditor_Export(t *testing.T) {
	editor, engine := newTestEditor(t, &mockBackend{}, time.Minute)
	opened, err := editor.Open(context.Background(), "")
	require.NoError(t, err)

	art, err := editor.Export(context.Background(), opened.ID, model.FormatSVG, 0)
	require.NoError(t, err)
	assert.Equal(t, "svg@320", string(art.Data))
	assert.False(t, art.Detached)

	art, err = editor.Export(context.Background(), opened.ID, model.FormatPNG, 2048)
	require.NoError(t, err)
	assert.Equal(t, "png@2048", string(art.Data))
	assert.True(t, art.Detached)
	assert.Equal(t, int64(1), engine.live.Load())

	snap, err := editor.Get(opened.ID)
	require.NoError(t, err)
	assert.Equal(t, DefaultNewLinkPreviewPx, snap.Config.Width)
}

func TestEditor_SaveNewLink(t *testing.T) {
	var got backend.CreateLinkRequest
	api := &mockBackend{
		createLinkFn: func(ctx context.Context, token string, req backend.CreateLinkRequest) error {
			got = req
			return nil
		},
	}
	editor, _ := newTestEditor(t, api, time.Minute)
	opened, err := editor.Open(context.Background(), "")
	require.NoError(t, err)

	_, err = editor.Update(context.Background(), opened.ID, EditorUpdate{
		EditorPatch: model.EditorPatch{ModuleShape: ptr("dots")},
		Content:     ptr("https://example.com"),
		Slug:        ptr("promo"),
	})
	require.NoError(t, err)

	snap, err := editor.Save(context.Background(), opened.ID)
	require.NoError(t, err)

	assert.Equal(t, "promo", got.LinkID)
	assert.Equal(t, "https://example.com", got.Content)
	var info map[string]any
	require.NoError(t, json.Unmarshal(got.QRInfo, &info))
	assert.Equal(t, "dots", info["dotsType"])

	// The draft stays open with its appearance for the next link.
	assert.Empty(t, snap.Content)
	assert.Empty(t, snap.Slug)
	assert.Equal(t, model.ModuleDots, snap.State.ModuleShape)
	assert.Equal(t, "https://s.example.com/preview", snap.Config.Data)
}

func TestEditor_SaveExistingSendsBoundLinkAndCloses(t *testing.T) {
	link := storedLink(t)
	var got backend.EditLinkRequest
	api := &mockBackend{
		listLinksFn: func(ctx context.Context, token string) ([]model.Link, error) {
			return []model.Link{link}, nil
		},
		editLinkFn: func(ctx context.Context, token string, req backend.EditLinkRequest) error {
			got = req
			return nil
		},
	}
	editor, engine := newTestEditor(t, api, time.Minute)
	opened, err := editor.Open(context.Background(), "abc")
	require.NoError(t, err)

	_, err = editor.Update(context.Background(), opened.ID, EditorUpdate{
		Content: ptr("https://new.example.com"),
		Slug:    ptr("abc-2"),
	})
	require.NoError(t, err)

	_, err = editor.Save(context.Background(), opened.ID)
	require.NoError(t, err)

	assert.Equal(t, "abc", got.LinkID)
	assert.Equal(t, "abc-2", got.NewLinkID)
	assert.Equal(t, "https://new.example.com", got.Content)
	assert.NotEmpty(t, got.QRInfo)

	_, err = editor.Get(opened.ID)
	assert.ErrorIs(t, err, ErrEditorNotFound)
	assert.Zero(t, engine.live.Load())
}

func TestEditor_SaveFailureKeepsEditor(t *testing.T) {
	link := storedLink(t)
	api := &mockBackend{
		listLinksFn: func(ctx context.Context, token string) ([]model.Link, error) {
			return []model.Link{link}, nil
		},
		editLinkFn: func(ctx context.Context, token string, req backend.EditLinkRequest) error {
			return &model.RemoteError{StatusCode: 400, Message: "linkid already exists"}
		},
	}
	editor, engine := newTestEditor(t, api, time.Minute)
	opened, err := editor.Open(context.Background(), "abc")
	require.NoError(t, err)

	_, err = editor.Save(context.Background(), opened.ID)
	var remote *model.RemoteError
	require.ErrorAs(t, err, &remote)
	assert.Equal(t, "linkid already exists", remote.Message)

	_, err = editor.Get(opened.ID)
	assert.NoError(t, err)
	assert.Equal(t, int64(1), engine.live.Load())
}

func TestEditor_Close(t *testing.T) {
	editor, engine := newTestEditor(t, &mockBackend{}, time.Minute)
	opened, err := editor.Open(context.Background(), "")
	require.NoError(t, err)

	require.NoError(t, editor.Close(opened.ID))
	assert.Zero(t, engine.live.Load())
	assert.ErrorIs(t, editor.Close(opened.ID), ErrEditorNotFound)

	_, err = editor.Export(context.Background(), opened.ID, model.FormatPNG, 0)
	assert.ErrorIs(t, err, ErrEditorNotFound)
}

func TestEditor_IdleSessionsAreReleased(t *testing.T) {
	editor, engine := newTestEditor(t, &mockBackend{}, 40*time.Millisecond)
	_, err := editor.Open(context.Background(), "")
	require.NoError(t, err)

	assert.Eventually(t, func() bool { return engine.live.Load() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestEditor_CloseAllReleasesExpiredSessions(t *testing.T) {
	editor, engine := newTestEditor(t, &mockBackend{}, time.Hour)
	expired, err := editor.Open(context.Background(), "")
	require.NoError(t, err)
	_, err = editor.Open(context.Background(), "")
	require.NoError(t, err)
	require.Equal(t, int64(2), engine.live.Load())

	// Expire one session without waiting for the janitor.
	v, ok := editor.sessions.Get(expired.ID)
	require.True(t, ok)
	editor.sessions.Set(expired.ID, v, time.Nanosecond)
	time.Sleep(5 * time.Millisecond)

	editor.CloseAll()
	assert.Zero(t, engine.live.Load())
	assert.Zero(t, editor.sessions.ItemCount())
}

func TestEditor_ExportLink(t *testing.T) {
	link := storedLink(t)
	api := &mockBackend{
		listLinksFn: func(ctx context.Context, token string) ([]model.Link, error) {
			return []model.Link{link}, nil
		},
	}
	editor, engine := newTestEditor(t, api, time.Minute)

	art, err := editor.ExportLink(context.Background(), "abc", model.FormatPNG, 1024)
	require.NoError(t, err)
	assert.Equal(t, "png@1024", string(art.Data))
	assert.Zero(t, engine.live.Load())

	_, err = editor.ExportLink(context.Background(), "nope", model.FormatPNG, 0)
	assert.ErrorIs(t, err, ErrLinkNotFound)
}
