package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"kleiderkammer/internal/domain"
	"kleiderkammer/internal/middleware"
	"kleiderkammer/internal/repository/repotest"
	"kleiderkammer/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	testSecret         = "transport-test-secret"
	testAdminPassword  = "admin123"
	testMaxUploadBytes = 1 << 20
)

type testAPI struct {
	store  *repotest.Store
	users  service.UserService
	router http.Handler
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	logger := zap.NewNop()
	store := repotest.New()
	users := service.NewUserService(store, service.TokenSettings{Secret: testSecret})

	router := chi.NewRouter()
	router.Use(middleware.ErrorHandlingMiddleware(logger))
	authMiddleware := middleware.AuthMiddleware(testSecret, logger)

	NewAuthHandler(users, logger).RegisterRoutes(router, authMiddleware, nil)
	NewCatalogHandler(service.NewCatalogService(store), logger).RegisterRoutes(router, authMiddleware)
	NewSelectionHandler(service.NewSelectionService(store), logger).RegisterRoutes(router, authMiddleware)
	NewImportHandler(service.NewImportService(store), testMaxUploadBytes, logger).RegisterRoutes(router, authMiddleware)

	return &testAPI{store: store, users: users, router: router}
}

// adminToken bootstraps the admin account and logs it in
func (a *testAPI) adminToken(t *testing.T) string {
	t.Helper()
	_, err := a.users.EnsureAdmin(context.Background(), "Admin", testAdminPassword, "ADMIN")
	require.NoError(t, err)
	return a.login(t, "Admin", testAdminPassword)
}

// userToken seeds a regular account and logs it in
func (a *testAPI) userToken(t *testing.T, username, number string) (string, domain.User) {
	t.Helper()
	user := a.store.AddUser(domain.User{Username: username, Role: domain.RoleUser, Bekleidungsnummer: number})
	return a.login(t, username, number), user
}

func (a *testAPI) login(t *testing.T, username, identifier string) string {
	t.Helper()
	accessToken, _, _, err := a.users.Login(context.Background(), username, identifier)
	require.NoError(t, err)
	return accessToken
}

func (a *testAPI) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	default:
		payload, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v), "body: %s", w.Body.String())
}

func errorMessage(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var response middleware.ErrorResponse
	decodeBody(t, w, &response)
	return response.Error.Message
}

func int64Ptr(v int64) *int64 {
	return &v
}
