package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sifan077/PowerQR/internal/app/model"
	"github.com/sifan077/PowerQR/internal/backend"
)

// ErrLinkNotFound signals that the requested short link does not exist.
var ErrLinkNotFound = errors.New("link not found")

// LinkService defines behaviour-level operations on the operator's links.
type LinkService interface {
	CreateLink(ctx context.Context, input CreateLinkInput) error
	GetLink(ctx context.Context, id string) (*LinkView, error)
	ListLinks(ctx context.Context) ([]LinkView, error)
	UpdateLink(ctx context.Context, id string, input UpdateLinkInput) error
	DeleteLink(ctx context.Context, id string) error
	ShortURL(id string) string
}

// LinkView is a link with its short URL and decoded style.
type LinkView struct {
	model.Link
	ShortURL string            `json:"shortUrl"`
	Style    model.EditorState `json:"style"`
}

// CreateLinkInput captures data required to create a link. An empty LinkID
// lets the backend pick one.
type CreateLinkInput struct {
	LinkID  string
	Content string
	Style   model.StyleDescriptor
}

// UpdateLinkInput captures fields that can be changed on an existing link.
// Content is always sent; the other fields only when set.
type UpdateLinkInput struct {
	Content   string
	NewLinkID string
	Style     *model.StyleDescriptor
}

type linkService struct {
	api           backend.API
	guard         *SessionGuard
	adapter       *PersistenceAdapter
	publicBaseURL string
}

// NewLinkService returns a service that talks to the backend as the logged-in operator.
func NewLinkService(api backend.API, guard *SessionGuard, adapter *PersistenceAdapter, publicBaseURL string) LinkService {
	return &linkService{api: api, guard: guard, adapter: adapter, publicBaseURL: publicBaseURL}
}

func (s *linkService) ShortURL(id string) string {
	return model.ShortURL(s.publicBaseURL, id)
}

func (s *linkService) CreateLink(ctx context.Context, input CreateLinkInput) error {
	linkID := strings.TrimSpace(input.LinkID)
	if err := model.ValidateLinkID(linkID); err != nil {
		return err
	}
	if err := model.ValidateContent(input.Content); err != nil {
		return err
	}

	qrinfo, err := s.adapter.ToPersisted(input.Style)
	if err != nil {
		return err
	}

	err = s.guard.Do(ctx, func(token string) error {
		return s.api.CreateLink(ctx, token, backend.CreateLinkRequest{
			LinkID:  linkID,
			Content: strings.TrimSpace(input.Content),
			QRInfo:  qrinfo,
		})
	})
	if err != nil {
		return fmt.Errorf("create link: %w", err)
	}
	return nil
}

func (s *linkService) GetLink(ctx context.Context, id string) (*LinkView, error) {
	links, err := s.ListLinks(ctx)
	if err != nil {
		return nil, err
	}
	for i := range links {
		if links[i].ID == id {
			return &links[i], nil
		}
	}
	return nil, fmt.Errorf("get link %q: %w", id, ErrLinkNotFound)
}

func (s *linkService) ListLinks(ctx context.Context) ([]LinkView, error) {
	var links []model.Link
	err := s.guard.Do(ctx, func(token string) error {
		var err error
		links, err = s.api.ListLinks(ctx, token)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("list links: %w", err)
	}
	return s.views(links), nil
}

func (s *linkService) views(links []model.Link) []LinkView {
	out := make([]LinkView, 0, len(links))
	for _, l := range links {
		out = append(out, LinkView{
			Link:     l,
			ShortURL: s.ShortURL(l.ID),
			Style:    s.adapter.DecodeStyle(l.ID, l.QRInfo),
		})
	}
	return out
}

func (s *linkService) UpdateLink(ctx context.Context, id string, input UpdateLinkInput) error {
	if id == "" {
		return model.NewValidationError("linkid", "linkid is required")
	}
	newID := strings.TrimSpace(input.NewLinkID)
	if err := model.ValidateLinkID(newID); err != nil {
		return err
	}
	if err := model.ValidateContent(input.Content); err != nil {
		return err
	}

	req := backend.EditLinkRequest{
		LinkID:    id,
		Content:   strings.TrimSpace(input.Content),
		NewLinkID: newID,
	}
	if input.Style != nil {
		qrinfo, err := s.adapter.ToPersisted(*input.Style)
		if err != nil {
			return err
		}
		req.QRInfo = qrinfo
	}

	err := s.guard.Do(ctx, func(token string) error {
		return s.api.EditLink(ctx, token, req)
	})
	if err != nil {
		return fmt.Errorf("update link: %w", err)
	}
	return nil
}

func (s *linkService) DeleteLink(ctx context.Context, id string) error {
	if id == "" {
		return model.NewValidationError("linkid", "linkid is required")
	}
	err := s.guard.Do(ctx, func(token string) error {
		return s.api.DeleteLink(ctx, token, id)
	})
	if err != nil {
		return fmt.Errorf("delete link: %w", err)
	}
	return nil
}
