package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	pkgauth "github.com/sandaruwanb/lankamart-backend/pkg/auth"
	"github.com/sandaruwanb/lankamart-backend/pkg/authz"
	"github.com/sandaruwanb/lankamart-backend/pkg/config"
	"github.com/sandaruwanb/lankamart-backend/pkg/enums"
)

func testJWTConfig() config.JWTConfig {
	return config.JWTConfig{
		Secret:            "test-secret",
		Issuer:            "lankamart-test",
		ExpirationMinutes: 15,
	}
}

func TestAuthSeedsActor(t *testing.T) {
	t.Parallel()

	cfg := testJWTConfig()
	supplierID := uuid.New()
	payload := pkgauth.AccessTokenPayload{
		UserID:     uuid.New(),
		Role:       enums.RoleSupplier,
		SupplierID: &supplierID,
		JTI:        uuid.NewString(),
	}
	token, err := pkgauth.MintAccessToken(cfg, time.Now(), payload)
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}

	var seen bool
	handler := Auth(cfg, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, ok := ActorFromContext(r.Context())
		if !ok {
			t.Fatalf("actor missing from context")
		}
		if actor.UserID != payload.UserID || actor.Role != enums.RoleSupplier {
			t.Fatalf("unexpected actor %+v", actor)
		}
		if actor.SupplierID == nil || *actor.SupplierID != supplierID {
			t.Fatalf("supplier id not propagated")
		}
		seen = true
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if !seen || rec.Code != http.StatusOK {
		t.Fatalf("expected authenticated pass-through, status %d", rec.Code)
	}
}

func TestAuthRejectsMissingAndBadTokens(t *testing.T) {
	t.Parallel()

	cfg := testJWTConfig()
	handler := Auth(cfg, nil)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatalf("handler must not run")
	}))

	missing := httptest.NewRequest(http.MethodGet, "/api/v1/orders", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, missing)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for missing header, got %d", rec.Code)
	}

	garbage := httptest.NewRequest(http.MethodGet, "/api/v1/orders", nil)
	garbage.Header.Set("Authorization", "Bearer not-a-token")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, garbage)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for garbage token, got %d", rec.Code)
	}
}

func TestRequireStaffBlocksCustomers(t *testing.T) {
	t.Parallel()

	handler := RequireStaff(nil)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/purchase-requests", nil)
	req = req.WithContext(WithActor(req.Context(), actorWithRole(enums.RoleCustomer)))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for customer, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/purchase-requests", nil)
	req = req.WithContext(WithActor(req.Context(), actorWithRole(enums.RoleAdmin)))
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for admin, got %d", rec.Code)
	}
}

func actorWithRole(role enums.Role) authz.Actor {
	return authz.Actor{UserID: uuid.New(), Role: role}
}
