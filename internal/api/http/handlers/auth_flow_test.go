package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/commerce-platform/internal/api/http"
	"github.com/spec-kit/commerce-platform/internal/api/http/handlers"
	"github.com/spec-kit/commerce-platform/internal/auth"
	"github.com/spec-kit/commerce-platform/internal/config"
	"github.com/spec-kit/commerce-platform/internal/domain"
	"github.com/spec-kit/commerce-platform/internal/revocation"
	"github.com/spec-kit/commerce-platform/internal/service"
	"github.com/spec-kit/commerce-platform/internal/upload"
)

type memoryUserRepo struct {
	mu     sync.Mutex
	nextID int
	users  map[string]*domain.User
}

func newMemoryUserRepo() *memoryUserRepo {
	return &memoryUserRepo{users: make(map[string]*domain.User)}
}

func (r *memoryUserRepo) Create(_ context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	user.ID = fmt.Sprintf("user-%d", r.nextID)
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	clone := *user
	r.users[user.ID] = &clone
	return nil
}

func (r *memoryUserRepo) Update(_ context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[user.ID]; !ok {
		return pgx.ErrNoRows
	}
	clone := *user
	r.users[user.ID] = &clone
	return nil
}

func (r *memoryUserRepo) GetByID(_ context.Context, id string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	clone := *user
	return &clone, nil
}

func (r *memoryUserRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, user := range r.users {
		if user.Email == email {
			clone := *user
			return &clone, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *memoryUserRepo) delete(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.users, id)
}

type testEnv struct {
	app   *fiber.App
	repo  *memoryUserRepo
	store revocation.Store
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	t.Cleanup(mr.Close)

	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	logger := zap.NewNop()
	repo := newMemoryUserRepo()
	store := revocation.NewRedisStore(client)

	sessions := service.NewSessionService(config.AuthConfig{
		JWTSecret:     "test-secret",
		TokenTTLHours: 1,
		BcryptCost:    4,
	}, service.SessionDependencies{
		UserRepo:   repo,
		Revocation: store,
		Logger:     logger,
	})

	sink, err := upload.NewDiskSink(t.TempDir(), 1<<20)
	if err != nil {
		t.Fatalf("sink: %v", err)
	}
	profiles := service.NewProfileService(repo, sink, nil, logger)

	app := fiber.New()
	httptransport.RegisterMiddlewares(app, logger, nil, 0)
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler("test", "test", nil, nil),
		Auth:           handlers.NewAuthHandler(sessions),
		Users:          handlers.NewUsersHandler(profiles),
		Products:       handlers.NewProductsHandler(service.NewProductService(nil, nil)),
		AuthMiddleware: auth.NewAuthMiddleware(sessions.TokenManager(), repo, store, logger),
	})

	return &testEnv{app: app, repo: repo, store: store}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := e.app.Test(req, 5000)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}

	decoded := map[string]any{}
	raw, _ := io.ReadAll(resp.Body)
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &decoded)
	}
	return resp, decoded
}

func (e *testEnv) register(t *testing.T) (string, string) {
	t.Helper()
	resp, body := e.do(t, http.MethodPost, "/auth/register", "", map[string]string{
		"name": "A", "email": "a@x.com", "password": "pw",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register status %d: %v", resp.StatusCode, body)
	}
	token, _ := body["token"].(string)
	if token == "" {
		t.Fatalf("register returned no token: %v", body)
	}
	user, _ := body["user"].(map[string]any)
	id, _ := user["id"].(string)
	return token, id
}

func TestRegisterLoginValidation(t *testing.T) {
	env := newTestEnv(t)

	resp, _ := env.do(t, http.MethodPost, "/auth/register", "", map[string]string{"email": "a@x.com"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("missing fields: status %d", resp.StatusCode)
	}

	env.register(t)

	resp, _ = env.do(t, http.MethodPost, "/auth/register", "", map[string]string{
		"name": "B", "email": "a@x.com", "password": "other",
	})
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("duplicate email: status %d", resp.StatusCode)
	}

	// Wrong password and unknown account produce identical error bodies.
	respWrong, bodyWrong := env.do(t, http.MethodPost, "/auth/login", "", map[string]string{
		"email": "a@x.com", "password": "nope",
	})
	respUnknown, bodyUnknown := env.do(t, http.MethodPost, "/auth/login", "", map[string]string{
		"email": "ghost@x.com", "password": "pw",
	})
	if respWrong.StatusCode != http.StatusUnauthorized || respUnknown.StatusCode != http.StatusUnauthorized {
		t.Fatalf("login failures: %d, %d", respWrong.StatusCode, respUnknown.StatusCode)
	}
	rawWrong, _ := json.Marshal(bodyWrong)
	rawUnknown, _ := json.Marshal(bodyUnknown)
	if string(rawWrong) != string(rawUnknown) {
		t.Fatalf("error bodies differ: %s vs %s", rawWrong, rawUnknown)
	}
}

func TestAuthenticatorStateMachine(t *testing.T) {
	env := newTestEnv(t)
	token, userID := env.register(t)

	// No credential.
	resp, _ := env.do(t, http.MethodGet, "/users/profile", "", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("no token: status %d", resp.StatusCode)
	}

	// Invalid credential.
	resp, _ = env.do(t, http.MethodGet, "/users/profile", "garbage", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("bad token: status %d", resp.StatusCode)
	}

	// Authenticated; the password hash must not appear in the response.
	resp, body := env.do(t, http.MethodGet, "/users/profile", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("valid token: status %d", resp.StatusCode)
	}
	if _, exists := body["password_hash"]; exists {
		t.Fatal("profile response leaks password hash")
	}
	if body["email"] != "a@x.com" {
		t.Fatalf("unexpected profile body: %v", body)
	}

	// Identity deleted after issuance.
	env.repo.delete(userID)
	resp, _ = env.do(t, http.MethodGet, "/users/profile", token, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("deleted identity: status %d", resp.StatusCode)
	}
}

func TestLogoutRevokesAcrossRequests(t *testing.T) {
	env := newTestEnv(t)
	token, userID := env.register(t)
	ctx := context.Background()

	// Logout without a token is a bad request.
	resp, _ := env.do(t, http.MethodPost, "/auth/logout", "", nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("logout without token: status %d", resp.StatusCode)
	}

	resp, _ = env.do(t, http.MethodPost, "/auth/logout", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("logout: status %d", resp.StatusCode)
	}

	live, err := env.store.IsLive(ctx, userID, token)
	if err != nil {
		t.Fatalf("islive: %v", err)
	}
	if live {
		t.Fatal("token still live after logout")
	}

	// Liveness is authoritative: the signature-valid token is now refused.
	resp, body := env.do(t, http.MethodGet, "/users/profile", token, nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("revoked token accepted: status %d (%v)", resp.StatusCode, body)
	}
	if msg := errorMessage(body); !strings.Contains(msg, "revoked") {
		t.Fatalf("expected revocation message, got %q", msg)
	}

	// Logout is idempotent over HTTP too.
	resp, _ = env.do(t, http.MethodPost, "/auth/logout", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("second logout: status %d", resp.StatusCode)
	}
}

func TestProfileUpdate(t *testing.T) {
	env := newTestEnv(t)
	token, _ := env.register(t)

	resp, body := env.do(t, http.MethodPut, "/users/profile", token, map[string]string{
		"bio": "hello", "location": "berlin",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("update profile: status %d (%v)", resp.StatusCode, body)
	}

	_, body = env.do(t, http.MethodGet, "/users/profile", token, nil)
	profile, _ := body["profile"].(map[string]any)
	if profile["bio"] != "hello" || profile["location"] != "berlin" {
		t.Fatalf("profile not updated: %v", body)
	}
}

func errorMessage(body map[string]any) string {
	errObj, _ := body["error"].(map[string]any)
	msg, _ := errObj["message"].(string)
	return msg
}
