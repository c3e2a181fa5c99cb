package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"forest-auth/internal/middleware"
	"forest-auth/internal/model"
)

type mockAuthService struct {
	mock.Mock
}

func (m *mockAuthService) Login(ctx context.Context, username string, password string) (model.AuthResponse, error) {
	args := m.Called(ctx, username, password)
	return args.Get(0).(model.AuthResponse), args.Error(1)
}

func (m *mockAuthService) Refresh(ctx context.Context, req model.RefreshRequest) (model.AuthResponse, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(model.AuthResponse), args.Error(1)
}

func (m *mockAuthService) Logout(ctx context.Context, refreshToken string) error {
	args := m.Called(ctx, refreshToken)
	return args.Error(0)
}

func (m *mockAuthService) Register(ctx context.Context, req model.RegisterRequest) error {
	args := m.Called(ctx, req)
	return args.Error(0)
}

func (m *mockAuthService) VerifyAccount(ctx context.Context, token string) error {
	args := m.Called(ctx, token)
	return args.Error(0)
}

func (m *mockAuthService) ForgotPassword(ctx context.Context, email string) error {
	args := m.Called(ctx, email)
	return args.Error(0)
}

func (m *mockAuthService) ResetPassword(ctx context.Context, token string, newPassword string) error {
	args := m.Called(ctx, token, newPassword)
	return args.Error(0)
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) model.APIResponse {
	t.Helper()
	var resp model.APIResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp
}

func TestAuthHandler_Login(t *testing.T) {
	t.Run("returns the token pair on success", func(t *testing.T) {
		svc := new(mockAuthService)
		h := NewAuthHandler(svc, "http://localhost:4200/login")

		expiresAt := time.Date(2025, 6, 1, 12, 15, 0, 0, time.UTC)
		svc.On("Login", mock.Anything, "alice", "correct").Return(model.AuthResponse{
			AccessToken:  "access-1",
			RefreshToken: "refresh-1",
			ExpiresAt:    expiresAt,
			Username:     "alice",
		}, nil)

		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login",
			strings.NewReader(`{"username":"alice","password":"correct"}`))
		rec := httptest.NewRecorder()
		h.Login(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		resp := decodeEnvelope(t, rec)
		assert.True(t, resp.Success)

		data := resp.Data.(map[string]any)
		assert.Equal(t, "access-1", data["access_token"])
		assert.Equal(t, "refresh-1", data["refresh_token"])
		assert.Equal(t, "alice", data["username"])
	})

	t.Run("bad credentials map to 401 with a uniform message", func(t *testing.T) {
		svc := new(mockAuthService)
		h := NewAuthHandler(svc, "http://localhost:4200/login")

		svc.On("Login", mock.Anything, "alice", "wrong").Return(model.AuthResponse{}, model.ErrBadCredentials)

		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login",
			strings.NewReader(`{"username":"alice","password":"wrong"}`))
		rec := httptest.NewRecorder()
		h.Login(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		resp := decodeEnvelope(t, rec)
		require.NotNil(t, resp.Error)
		assert.Equal(t, "UNAUTHORIZED", resp.Error.Code)
		assert.Equal(t, "Login failed. Please check your credentials and try again.", resp.Error.Message)
	})

	t.Run("malformed body is a 400", func(t *testing.T) {
		svc := new(mockAuthService)
		h := NewAuthHandler(svc, "http://localhost:4200/login")

		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader(`{not json`))
		rec := httptest.NewRecorder()
		h.Login(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		svc.AssertNotCalled(t, "Login", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestAuthHandler_Register(t *testing.T) {
	t.Run("valid payload registers and returns 201", func(t *testing.T) {
		svc := new(mockAuthService)
		h := NewAuthHandler(svc, "http://localhost:4200/login")

		svc.On("Register", mock.Anything, model.RegisterRequest{
			Username: "carol",
			Email:    "carol@example.com",
			Password: "s3cret",
		}).Return(nil)

		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/register",
			strings.NewReader(`{"username":"carol","email":"carol@example.com","password":"s3cret"}`))
		rec := httptest.NewRecorder()
		h.Register(rec, req)

		assert.Equal(t, http.StatusCreated, rec.Code)
		svc.AssertExpectations(t)
	})

	t.Run("missing fields are rejected before the service", func(t *testing.T) {
		svc := new(mockAuthService)
		h := NewAuthHandler(svc, "http://localhost:4200/login")

		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/register",
			strings.NewReader(`{"username":"carol"}`))
		rec := httptest.NewRecorder()
		h.Register(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		svc.AssertNotCalled(t, "Register", mock.Anything, mock.Anything)
	})

	t.Run("duplicate account maps to 409", func(t *testing.T) {
		svc := new(mockAuthService)
		h := NewAuthHandler(svc, "http://localhost:4200/login")

		svc.On("Register", mock.Anything, mock.Anything).Return(model.ErrUserAlreadyExists)

		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/register",
			strings.NewReader(`{"username":"carol","email":"carol@example.com","password":"s3cret"}`))
		rec := httptest.NewRecorder()
		h.Register(rec, req)

		assert.Equal(t, http.StatusConflict, rec.Code)
		resp := decodeEnvelope(t, rec)
		require.NotNil(t, resp.Error)
		assert.Equal(t, "ALREADY_EXISTS", resp.Error.Code)
	})
}

func TestAuthHandler_Refresh(t *testing.T) {
	t.Run("exchanges the pair on success", func(t *testing.T) {
		svc := new(mockAuthService)
		h := NewAuthHandler(svc, "http://localhost:4200/login")

		svc.On("Refresh", mock.Anything, model.RefreshRequest{
			RefreshToken: "old-refresh",
			Username:     "alice",
		}).Return(model.AuthResponse{
			AccessToken:  "access-2",
			RefreshToken: "new-refresh",
			Username:     "alice",
		}, nil)

		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/refresh",
			strings.NewReader(`{"refresh_token":"old-refresh","username":"alice"}`))
		rec := httptest.NewRecorder()
		h.Refresh(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		data := decodeEnvelope(t, rec).Data.(map[string]any)
		assert.Equal(t, "new-refresh", data["refresh_token"])
	})

	t.Run("empty fields are a 400", func(t *testing.T) {
		svc := new(mockAuthService)
		h := NewAuthHandler(svc, "http://localhost:4200/login")

		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/refresh",
			strings.NewReader(`{"refresh_token":"  ","username":""}`))
		rec := httptest.NewRecorder()
		h.Refresh(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		svc.AssertNotCalled(t, "Refresh", mock.Anything, mock.Anything)
	})

	t.Run("rejected token maps to 401", func(t *testing.T) {
		svc := new(mockAuthService)
		h := NewAuthHandler(svc, "http://localhost:4200/login")

		svc.On("Refresh", mock.Anything, mock.Anything).Return(model.AuthResponse{}, model.ErrInvalidRefresh)

		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/refresh",
			strings.NewReader(`{"refresh_token":"rotated-away","username":"alice"}`))
		rec := httptest.NewRecorder()
		h.Refresh(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("store outage maps to 503", func(t *testing.T) {
		svc := new(mockAuthService)
		h := NewAuthHandler(svc, "http://localhost:4200/login")

		svc.On("Refresh", mock.Anything, mock.Anything).Return(model.AuthResponse{}, model.ErrStoreUnavailable)

		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/refresh",
			strings.NewReader(`{"refresh_token":"tok","username":"alice"}`))
		rec := httptest.NewRecorder()
		h.Refresh(rec, req)

		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})
}

func TestAuthHandler_Logout(t *testing.T) {
	svc := new(mockAuthService)
	h := NewAuthHandler(svc, "http://localhost:4200/login")

	svc.On("Logout", mock.Anything, "refresh-1").Return(nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/logout",
		strings.NewReader(`{"refresh_token":"refresh-1"}`))
	rec := httptest.NewRecorder()
	h.Logout(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	svc.AssertExpectations(t)
}

func TestAuthHandler_VerifyAccount(t *testing.T) {
	newVerifyRequest := func(token string) *http.Request {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/verify/"+token, nil)
		rctx := chi.NewRouteContext()
		rctx.URLParams.Add("token", token)
		return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
	}

	t.Run("redirects to the login page on success", func(t *testing.T) {
		svc := new(mockAuthService)
		h := NewAuthHandler(svc, "http://localhost:4200/login")

		svc.On("VerifyAccount", mock.Anything, "valid-token").Return(nil)

		rec := httptest.NewRecorder()
		h.VerifyAccount(rec, newVerifyRequest("valid-token"))

		assert.Equal(t, http.StatusFound, rec.Code)
		assert.Equal(t, "http://localhost:4200/login", rec.Header().Get("Location"))
	})

	t.Run("unknown token maps to 400", func(t *testing.T) {
		svc := new(mockAuthService)
		h := NewAuthHandler(svc, "http://localhost:4200/login")

		svc.On("VerifyAccount", mock.Anything, "bogus").Return(model.ErrInvalidToken)

		rec := httptest.NewRecorder()
		h.VerifyAccount(rec, newVerifyRequest("bogus"))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		resp := decodeEnvelope(t, rec)
		require.NotNil(t, resp.Error)
		assert.Equal(t, "INVALID_TOKEN", resp.Error.Code)
	})
}

func TestAuthHandler_ForgotPassword(t *testing.T) {
	t.Run("dispatches a reset link", func(t *testing.T) {
		svc := new(mockAuthService)
		h := NewAuthHandler(svc, "http://localhost:4200/login")

		svc.On("ForgotPassword", mock.Anything, "carol@example.com").Return(nil)

		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/forgot-password",
			strings.NewReader(`{"email":" carol@example.com "}`))
		rec := httptest.NewRecorder()
		h.ForgotPassword(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		svc.AssertExpectations(t)
	})

	t.Run("unknown email maps to 404", func(t *testing.T) {
		svc := new(mockAuthService)
		h := NewAuthHandler(svc, "http://localhost:4200/login")

		svc.On("ForgotPassword", mock.Anything, "ghost@example.com").Return(model.ErrUserNotFound)

		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/forgot-password",
			strings.NewReader(`{"email":"ghost@example.com"}`))
		rec := httptest.NewRecorder()
		h.ForgotPassword(rec, req)

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestAuthHandler_Me(t *testing.T) {
	svc := new(mockAuthService)
	h := NewAuthHandler(svc, "http://localhost:4200/login")

	t.Run("returns the request principal", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil)
		ctx := middleware.WithPrincipal(req.Context(), model.Principal{Username: "alice", Role: model.RoleUser})

		rec := httptest.NewRecorder()
		h.Me(rec, req.WithContext(ctx))

		assert.Equal(t, http.StatusOK, rec.Code)
		data := decodeEnvelope(t, rec).Data.(map[string]any)
		assert.Equal(t, "alice", data["username"])
		assert.Equal(t, model.RoleUser, data["role"])
	})

	t.Run("anonymous request is rejected", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.Me(rec, httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil))

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestAuthHandler_ResetPassword(t *testing.T) {
	t.Run("resets with a valid token", func(t *testing.T) {
		svc := new(mockAuthService)
		h := NewAuthHandler(svc, "http://localhost:4200/login")

		svc.On("ResetPassword", mock.Anything, "reset-token", "new-pw").Return(nil)

		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/reset-password",
			strings.NewReader(`{"token":"reset-token","new_password":"new-pw"}`))
		rec := httptest.NewRecorder()
		h.ResetPassword(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		svc.AssertExpectations(t)
	})

	t.Run("missing password is a 400", func(t *testing.T) {
		svc := new(mockAuthService)
		h := NewAuthHandler(svc, "http://localhost:4200/login")

		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/reset-password",
			strings.NewReader(`{"token":"reset-token"}`))
		rec := httptest.NewRecorder()
		h.ResetPassword(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		svc.AssertNotCalled(t, "ResetPassword", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("consumed token maps to 400", func(t *testing.T) {
		svc := new(mockAuthService)
		h := NewAuthHandler(svc, "http://localhost:4200/login")

		svc.On("ResetPassword", mock.Anything, "reset-token", "new-pw").Return(model.ErrInvalidToken)

		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/reset-password",
			strings.NewReader(`{"token":"reset-token","new_password":"new-pw"}`))
		rec := httptest.NewRecorder()
		h.ResetPassword(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}
