package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofrs/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artisansalley/backend/internal/user"
)

type mockUserRepository struct {
	GetByIDFunc  func(ctx context.Context, id uuid.UUID) (*user.User, error)
	GetByIDsFunc func(ctx context.Context, ids []uuid.UUID) ([]user.User, error)
}

func (m *mockUserRepository) GetByID(ctx context.Context, id uuid.UUID) (*user.User, error) {
	return m.GetByIDFunc(ctx, id)
}

func (m *mockUserRepository) GetByIDs(ctx context.Context, ids []uuid.UUID) ([]user.User, error) {
	return m.GetByIDsFunc(ctx, ids)
}

func TestActorMiddleware(t *testing.T) {
	known := testActor(t, user.RoleNormalUser)
	inactive := testActor(t, user.RoleNormalUser)
	inactive.IsActive = false

	repo := &mockUserRepository{
		GetByIDFunc: func(ctx context.Context, id uuid.UUID) (*user.User, error) {
			switch id {
			case known.ID:
				return known, nil
			case inactive.ID:
				return inactive, nil
			default:
				return nil, user.ErrUserNotFound
			}
		},
	}

	var resolved *user.User
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resolved, _ = actorFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})
	wrapped := ActorMiddleware(repo)(next)

	unknown, err := uuid.NewV4()
	require.NoError(t, err)

	tests := []struct {
		name       string
		header     string
		wantStatus int
	}{
		{name: "missing header", header: "", wantStatus: http.StatusUnauthorized},
		{name: "malformed id", header: "not-a-uuid", wantStatus: http.StatusUnauthorized},
		{name: "unknown user", header: unknown.String(), wantStatus: http.StatusUnauthorized},
		{name: "deactivated user", header: inactive.ID.String(), wantStatus: http.StatusForbidden},
		{name: "known active user", header: known.ID.String(), wantStatus: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resolved = nil

			req := httptest.NewRequest(http.MethodGet, "/orders", nil)
			if tt.header != "" {
				req.Header.Set("X-User-ID", tt.header)
			}
			rr := httptest.NewRecorder()
			wrapped.ServeHTTP(rr, req)

			assert.Equal(t, tt.wantStatus, rr.Code)
			if tt.wantStatus == http.StatusOK {
				require.NotNil(t, resolved)
				assert.Equal(t, known.ID, resolved.ID)
			} else {
				assert.Nil(t, resolved)
			}
		})
	}
}
