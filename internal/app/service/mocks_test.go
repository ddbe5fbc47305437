package service

import (
	"context"

	"github.com/sifan077/PowerQR/internal/app/model"
	"github.com/sifan077/PowerQR/internal/backend"
)

type mockBackend struct {
	authenticateFn   func(ctx context.Context, username, passwordHash string) (string, error)
	meFn             func(ctx context.Context, token string) (*model.User, error)
	createUserFn     func(ctx context.Context, token string, req backend.CreateUserRequest) error
	deleteUserFn     func(ctx context.Context, token, username string) error
	changePasswordFn func(ctx context.Context, token string, req backend.ChangePasswordRequest) error
	createLinkFn     func(ctx context.Context, token string, req backend.CreateLinkRequest) error
	editLinkFn       func(ctx context.Context, token string, req backend.EditLinkRequest) error
	deleteLinkFn     func(ctx context.Context, token, linkID string) error
	listLinksFn      func(ctx context.Context, token string) ([]model.Link, error)
	listAllLinksFn   func(ctx context.Context, token string) ([]model.Link, error)
	listAllUsersFn   func(ctx context.Context, token string) ([]model.User, error)
}

func (m *mockBackend) Authenticate(ctx context.Context, username, passwordHash string) (string, error) {
	if m.authenticateFn != nil {
		return m.authenticateFn(ctx, username, passwordHash)
	}
	return "token", nil
}

func (m *mockBackend) Me(ctx context.Context, token string) (*model.User, error) {
	if m.meFn != nil {
		return m.meFn(ctx, token)
	}
	return &model.User{Username: "operator"}, nil
}

func (m *mockBackend) CreateUser(ctx context.Context, token string, req backend.CreateUserRequest) error {
	if m.createUserFn != nil {
		return m.createUserFn(ctx, token, req)
	}
	return nil
}

func (m *mockBackend) DeleteUser(ctx context.Context, token, username string) error {
	if m.deleteUserFn != nil {
		return m.deleteUserFn(ctx, token, username)
	}
	return nil
}

func (m *mockBackend) ChangePassword(ctx context.Context, token string, req backend.ChangePasswordRequest) error {
	if m.changePasswordFn != nil {
		return m.changePasswordFn(ctx, token, req)
	}
	return nil
}

func (m *mockBackend) CreateLink(ctx context.Context, token string, req backend.CreateLinkRequest) error {
	if m.createLinkFn != nil {
		return m.createLinkFn(ctx, token, req)
	}
	return nil
}

func (m *mockBackend) EditLink(ctx context.Context, token string, req backend.EditLinkRequest) error {
	if m.editLinkFn != nil {
		return m.editLinkFn(ctx, token, req)
	}
	return nil
}

func (m *mockBackend) DeleteLink(ctx context.Context, token, linkID string) error {
	if m.deleteLinkFn != nil {
		return m.deleteLinkFn(ctx, token, linkID)
	}
	return nil
}

func (m *mockBackend) ListLinks(ctx context.Context, token string) ([]model.Link, error) {
	if m.listLinksFn != nil {
		return m.listLinksFn(ctx, token)
	}
	return nil, nil
}

func (m *mockBackend) ListAllLinks(ctx context.Context, token string) ([]model.Link, error) {
	if m.listAllLinksFn != nil {
		return m.listAllLinksFn(ctx, token)
	}
	return nil, nil
}

func (m *mockBackend) ListAllUsers(ctx context.Context, token string) ([]model.User, error) {
	if m.listAllUsersFn != nil {
		return m.listAllUsersFn(ctx, token)
	}
	return nil, nil
}

func (m *mockBackend) Ping(context.Context) error { return nil }
