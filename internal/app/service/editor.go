package service

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"
	"github.com/sifan077/PowerQR/internal/app/model"
	"github.com/sifan077/PowerQR/internal/render"
	"go.uber.org/zap"
)

// ErrEditorNotFound means the editor session is closed or never existed.
var ErrEditorNotFound = errors.New("editor session not found")

// previewSlug stands in for the short id while a new link has none yet.
const previewSlug = "preview"

// SaveRequest is what Save will send, fixed when the editor opens. An empty
// LinkID means the editor creates a new link.
type SaveRequest struct {
	LinkID          string `json:"linkid,omitempty"`
	OriginalContent string `json:"originalContent,omitempty"`
}

// IsNew reports whether saving creates a link.
func (r SaveRequest) IsNew() bool {
	return r.LinkID == ""
}

// EditorUpdate changes an open editor. Slug is the requested id of a new
// link or the new id of an existing one.
type EditorUpdate struct {
	model.EditorPatch
	Content      *string `json:"content,omitempty"`
	Slug         *string `json:"slug,omitempty"`
	ExportSizePx *int    `json:"exportSize,omitempty"`
}

// EditorSnapshot is the visible state of an editor.
type EditorSnapshot struct {
	ID           string             `json:"id"`
	Save         SaveRequest        `json:"save"`
	Content      string             `json:"content"`
	Slug         string             `json:"slug"`
	ShortURL     string             `json:"shortUrl"`
	ExportSizePx int                `json:"exportSize"`
	State        model.EditorState  `json:"state"`
	Config       model.RenderConfig `json:"config"`
}

type editorSession struct {
	mu sync.Mutex

	id           string
	save         SaveRequest
	content      string
	slug         string
	exportSizePx int
	state        model.EditorState
	preview      render.Instance
	closed       bool
}

func (s *editorSession) release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.preview != nil {
		s.preview.Release()
		s.preview = nil
	}
	s.closed = true
}

// EditorService keeps open QR editors. Each editor owns one rendered preview;
// idle editors are closed after the configured TTL.
type EditorService struct {
	links    LinkService
	resolver *Resolver
	pipeline *ExportPipeline
	adapter  *PersistenceAdapter
	sessions *gocache.Cache
	logger   *zap.Logger
}

// NewEditorService wires an editor store closing sessions idle longer than idleTTL.
func NewEditorService(links LinkService, resolver *Resolver, pipeline *ExportPipeline, adapter *PersistenceAdapter, idleTTL time.Duration, logger *zap.Logger) *EditorService {
	if idleTTL <= 0 {
		idleTTL = 30 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	sessions := gocache.New(idleTTL, idleTTL/2)
	sessions.OnEvicted(func(id string, v interface{}) {
		v.(*editorSession).release()
		logger.Debug("editor session closed", zap.String("id", id))
	})
	return &EditorService{
		links:    links,
		resolver: resolver,
		pipeline: pipeline,
		adapter:  adapter,
		sessions: sessions,
		logger:   logger,
	}
}

// Open starts an editor. An empty linkID opens a new-link draft with the
// reset appearance; otherwise the link's stored style is loaded.
func (e *EditorService) Open(ctx context.Context, linkID string) (*EditorSnapshot, error) {
	s := &editorSession{
		id:           uuid.NewString(),
		exportSizePx: DefaultExportSizePx,
	}

	linkID = strings.TrimSpace(linkID)
	if linkID == "" {
		s.state = model.NewLinkEditorState(DefaultNewLinkPreviewPx)
	} else {
		link, err := e.links.GetLink(ctx, linkID)
		if err != nil {
			return nil, err
		}
		s.save = SaveRequest{LinkID: link.ID, OriginalContent: link.Content}
		s.content = link.Content
		s.state = link.Style
	}

	preview, err := e.pipeline.Preview(ctx, e.config(s, s.state, s.slug))
	if err != nil {
		return nil, err
	}
	s.preview = preview

	e.sessions.SetDefault(s.id, s)
	e.logger.Debug("editor session opened", zap.String("id", s.id), zap.String("link_id", linkID))
	return e.snapshot(s), nil
}

// Get returns the editor's current state.
func (e *EditorService) Get(id string) (*EditorSnapshot, error) {
	s, err := e.lock(id)
	if err != nil {
		return nil, err
	}
	defer s.mu.Unlock()
	return e.snapshot(s), nil
}

// Update applies upd atomically: on any error the editor is unchanged.
func (e *EditorService) Update(ctx context.Context, id string, upd EditorUpdate) (*EditorSnapshot, error) {
	s, err := e.lock(id)
	if err != nil {
		return nil, err
	}
	defer s.mu.Unlock()

	next := s.state
	if err := upd.EditorPatch.ApplyTo(&next); err != nil {
		return nil, err
	}

	slug := s.slug
	if upd.Slug != nil {
		slug = strings.TrimSpace(*upd.Slug)
		if err := model.ValidateLinkID(slug); err != nil {
			return nil, err
		}
	}
	exportPx := s.exportSizePx
	if upd.ExportSizePx != nil {
		exportPx = e.resolver.Sizing().Export(*upd.ExportSizePx)
	}

	if err := e.rerender(ctx, s, next, slug); err != nil {
		return nil, err
	}
	s.state = next
	s.slug = slug
	s.exportSizePx = exportPx
	if upd.Content != nil {
		s.content = *upd.Content
	}
	return e.snapshot(s), nil
}

// Reset restores the new-link appearance. Content and slug are kept.
func (e *EditorService) Reset(ctx context.Context, id string) (*EditorSnapshot, error) {
	s, err := e.lock(id)
	if err != nil {
		return nil, err
	}
	defer s.mu.Unlock()

	next := model.NewLinkEditorState(DefaultNewLinkPreviewPx)
	if err := e.rerender(ctx, s, next, s.slug); err != nil {
		return nil, err
	}
	s.state = next
	s.exportSizePx = DefaultExportSizePx
	return e.snapshot(s), nil
}

// SetLogo stores an uploaded image as the editor's logo.
func (e *EditorService) SetLogo(ctx context.Context, id, mime string, data []byte) (*EditorSnapshot, error) {
	if len(data) == 0 {
		return nil, model.NewValidationError("logo", "empty file")
	}
	if !strings.HasPrefix(mime, "image/") {
		return nil, model.NewValidationError("logo", "logo must be an image")
	}
	uri := render.EncodeDataURI(mime, data)
	return e.Update(ctx, id, EditorUpdate{EditorPatch: model.EditorPatch{Logo: &uri}})
}

// PreviewImage returns the preview as PNG. It is not an export and is not recorded.
func (e *EditorService) PreviewImage(ctx context.Context, id string) ([]byte, error) {
	s, err := e.lock(id)
	if err != nil {
		return nil, err
	}
	defer s.mu.Unlock()

	data, err := s.preview.Extract(ctx, model.FormatPNG)
	if err != nil {
		return nil, &model.RenderFailure{Format: string(model.FormatPNG), SizePx: s.preview.Config().Width, Err: err}
	}
	return data, nil
}

// Export runs the export pipeline against the editor's preview. sizePx 0
// extracts the preview itself.
func (e *EditorService) Export(ctx context.Context, id string, format model.ImageFormat, sizePx int) (*Artifact, error) {
	s, err := e.lock(id)
	if err != nil {
		return nil, err
	}

	req := ExportRequest{
		LinkID:  s.save.LinkID,
		Preview: s.preview,
		Format:  format,
		SizePx:  sizePx,
	}
	if sizePx == 0 {
		defer s.mu.Unlock()
		return e.pipeline.Export(ctx, req)
	}

	// A detached export only needs the config; the editor stays usable
	// while it renders.
	req.Config = s.preview.Config()
	req.Preview = nil
	s.mu.Unlock()
	return e.pipeline.Export(ctx, req)
}

// Save creates or edits the link bound when the editor was opened. An edited
// link's editor is closed afterwards; a new-link draft keeps its appearance
// and starts over with empty content and slug.
func (e *EditorService) Save(ctx context.Context, id string) (*EditorSnapshot, error) {
	s, err := e.lock(id)
	if err != nil {
		return nil, err
	}

	desc := s.state.Descriptor()
	if s.save.IsNew() {
		defer s.mu.Unlock()
		err := e.links.CreateLink(ctx, CreateLinkInput{LinkID: s.slug, Content: s.content, Style: desc})
		if err != nil {
			return nil, err
		}
		if err := e.rerender(ctx, s, s.state, ""); err != nil {
			e.logger.Warn("preview refresh after create failed", zap.String("id", id), zap.Error(err))
		}
		s.content = ""
		s.slug = ""
		return e.snapshot(s), nil
	}

	err = e.links.UpdateLink(ctx, s.save.LinkID, UpdateLinkInput{
		Content:   s.content,
		NewLinkID: s.slug,
		Style:     &desc,
	})
	snap := e.snapshot(s)
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	e.logger.Debug("editor saved", zap.String("id", id), zap.Stringer("save", snap.Save))
	e.sessions.Delete(id)
	return snap, nil
}

// Close discards the editor and its preview.
func (e *EditorService) Close(id string) error {
	if _, ok := e.sessions.Get(id); !ok {
		return ErrEditorNotFound
	}
	e.sessions.Delete(id)
	return nil
}

// CloseAll discards every editor. Used on shutdown.
func (e *EditorService) CloseAll() {
	// Items skips entries that expired but were not evicted yet.
	e.sessions.DeleteExpired()
	for id := range e.sessions.Items() {
		e.sessions.Delete(id)
	}
}

// ExportLink renders a saved link straight from its stored style.
func (e *EditorService) ExportLink(ctx context.Context, linkID string, format model.ImageFormat, sizePx int) (*Artifact, error) {
	link, err := e.links.GetLink(ctx, linkID)
	if err != nil {
		return nil, err
	}
	cfg := e.resolver.Resolve(link.ShortURL, link.Style.Descriptor())
	return e.pipeline.Export(ctx, ExportRequest{LinkID: link.ID, Config: cfg, Format: format, SizePx: sizePx})
}

// lock finds the editor, refreshes its idle timer and returns it locked.
func (e *EditorService) lock(id string) (*editorSession, error) {
	v, ok := e.sessions.Get(id)
	if !ok {
		return nil, ErrEditorNotFound
	}
	s := v.(*editorSession)
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrEditorNotFound
	}
	e.sessions.SetDefault(id, s)
	return s, nil
}

// rerender swaps in a new preview when the drawn config changes. The old
// preview is released only after the new one rendered.
func (e *EditorService) rerender(ctx context.Context, s *editorSession, state model.EditorState, slug string) error {
	cfg := e.config(s, state, slug)
	if s.preview != nil && reflect.DeepEqual(s.preview.Config(), cfg.WithSize(e.resolver.Sizing().Preview(cfg.Width))) {
		return nil
	}
	preview, err := e.pipeline.Preview(ctx, cfg)
	if err != nil {
		return err
	}
	if s.preview != nil {
		s.preview.Release()
	}
	s.preview = preview
	return nil
}

func (e *EditorService) config(s *editorSession, state model.EditorState, slug string) model.RenderConfig {
	return e.resolver.Resolve(e.previewData(s, slug), state.Descriptor())
}

// previewData is the URL the preview encodes: the new slug if one is typed,
// else the link's current id.
func (e *EditorService) previewData(s *editorSession, slug string) string {
	id := slug
	if id == "" {
		id = s.save.LinkID
	}
	if id == "" {
		id = previewSlug
	}
	return e.links.ShortURL(id)
}

func (e *EditorService) snapshot(s *editorSession) *EditorSnapshot {
	snap := &EditorSnapshot{
		ID:           s.id,
		Save:         s.save,
		Content:      s.content,
		Slug:         s.slug,
		ShortURL:     e.previewData(s, s.slug),
		ExportSizePx: s.exportSizePx,
		State:        s.state,
	}
	if s.preview != nil {
		snap.Config = s.preview.Config()
	}
	return snap
}

// String is used in logs.
func (r SaveRequest) String() string {
	if r.IsNew() {
		return "create"
	}
	return fmt.Sprintf("edit %s", r.LinkID)
}
