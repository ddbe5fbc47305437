package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/sifan077/PowerQR/internal/app/model"
	"github.com/sifan077/PowerQR/internal/backend"
	"go.uber.org/zap"
)

// Overview is the admin bulk load. Either list may be missing when its fetch
// failed; Err then holds the first failure.
type Overview struct {
	Links []LinkView
	Users []model.User
	Err   *model.PartialListFailure
}

// CreateUserInput is a new account. Level defaults to a plain user.
type CreateUserInput struct {
	Username string
	Password string
	Level    *int
}

// AdminService covers account management and the site-admin overview. It
// does not check the operator's level: the backend decides what is allowed.
type AdminService struct {
	api    backend.API
	guard  *SessionGuard
	links  LinkService
	logger *zap.Logger
}

// NewAdminService wires the admin operations.
func NewAdminService(api backend.API, guard *SessionGuard, links LinkService, logger *zap.Logger) *AdminService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AdminService{api: api, guard: guard, links: links, logger: logger}
}

// Me returns the logged-in operator.
func (s *AdminService) Me(ctx context.Context) (*model.User, error) {
	var user *model.User
	err := s.guard.Do(ctx, func(token string) error {
		var err error
		user, err = s.api.Me(ctx, token)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("current user: %w", err)
	}
	return user, nil
}

// LoadOverview fetches all links and all users concurrently. One failed
// fetch does not discard the other's result. When both fail the links error
// is reported, and the call itself fails. A rejected token fails the call
// even when only one fetch saw it.
func (s *AdminService) LoadOverview(ctx context.Context) (*Overview, error) {
	token, err := s.guard.Token(ctx)
	if err != nil {
		return nil, err
	}

	var (
		wg       sync.WaitGroup
		links    []model.Link
		users    []model.User
		linksErr error
		usersErr error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		links, linksErr = s.api.ListAllLinks(ctx, token)
	}()
	go func() {
		defer wg.Done()
		users, usersErr = s.api.ListAllUsers(ctx, token)
	}()
	wg.Wait()

	if linksErr != nil && usersErr != nil {
		return nil, s.sessionCheck(ctx, fmt.Errorf("load all links: %w", linksErr))
	}
	for _, fetchErr := range []error{linksErr, usersErr} {
		if fetchErr == nil {
			continue
		}
		if err := s.sessionCheck(ctx, fetchErr); errors.Is(err, model.ErrSessionExpired) {
			return nil, err
		}
	}

	out := &Overview{}
	if linksErr != nil {
		out.Err = &model.PartialListFailure{List: "links", Err: linksErr}
	} else {
		out.Links = make([]LinkView, 0, len(links))
		for _, l := range links {
			out.Links = append(out.Links, LinkView{Link: l, ShortURL: s.links.ShortURL(l.ID)})
		}
	}
	if usersErr != nil {
		out.Err = &model.PartialListFailure{List: "users", Err: usersErr}
	} else {
		out.Users = users
	}

	if out.Err != nil {
		s.logger.Warn("admin overview partially loaded", zap.String("list", out.Err.List), zap.Error(out.Err.Err))
	}
	return out, nil
}

// sessionCheck routes err through the guard so a rejected token is dropped.
func (s *AdminService) sessionCheck(ctx context.Context, err error) error {
	return s.guard.Do(ctx, func(string) error { return err })
}

// CreateUser adds an account. The password is hashed before sending.
func (s *AdminService) CreateUser(ctx context.Context, input CreateUserInput) error {
	username := strings.TrimSpace(input.Username)
	if username == "" {
		return model.NewValidationError("username", "username is required")
	}
	if input.Password == "" {
		return model.NewValidationError("password", "password is required")
	}
	if input.Level != nil && (*input.Level < model.LevelUser || *input.Level > model.LevelSiteAdmin) {
		return model.NewValidationError("level", "level must be 0, 1 or 2")
	}

	err := s.guard.Do(ctx, func(token string) error {
		return s.api.CreateUser(ctx, token, backend.CreateUserRequest{
			Username: username,
			Password: HashPassword(input.Password),
			Level:    input.Level,
		})
	})
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

// DeleteUser removes another account. Deleting yourself is refused before
// anything is sent.
func (s *AdminService) DeleteUser(ctx context.Context, username string) error {
	username = strings.TrimSpace(username)
	if err := s.guardSelf(ctx, username, "cannot delete your own account"); err != nil {
		return err
	}
	err := s.guard.Do(ctx, func(token string) error {
		return s.api.DeleteUser(ctx, token, username)
	})
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	return nil
}

// ResetPassword sets another account's password. Use ChangeOwnPassword for
// your own.
func (s *AdminService) ResetPassword(ctx context.Context, username, password string) error {
	if password == "" {
		return model.NewValidationError("password", "password is required")
	}
	username = strings.TrimSpace(username)
	if err := s.guardSelf(ctx, username, "use the account page to change your own password"); err != nil {
		return err
	}
	err := s.guard.Do(ctx, func(token string) error {
		return s.api.ChangePassword(ctx, token, backend.ChangePasswordRequest{
			Username: username,
			Password: HashPassword(password),
		})
	})
	if err != nil {
		return fmt.Errorf("reset password: %w", err)
	}
	return nil
}

// ChangeOwnPassword changes the operator's password.
func (s *AdminService) ChangeOwnPassword(ctx context.Context, password string) error {
	if password == "" {
		return model.NewValidationError("password", "password is required")
	}
	err := s.guard.Do(ctx, func(token string) error {
		return s.api.ChangePassword(ctx, token, backend.ChangePasswordRequest{Password: HashPassword(password)})
	})
	if err != nil {
		return fmt.Errorf("change password: %w", err)
	}
	return nil
}

func (s *AdminService) guardSelf(ctx context.Context, username, message string) error {
	if username == "" {
		return model.NewValidationError("username", "username is required")
	}
	me, err := s.Me(ctx)
	if err != nil {
		return err
	}
	if me.Username == username {
		return model.NewValidationError("username", message)
	}
	return nil
}
