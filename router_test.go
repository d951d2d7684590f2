package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/user/akun-go/apperror"
	"github.com/user/akun-go/auth"
	"github.com/user/akun-go/background"
	"github.com/user/akun-go/storage"
	"github.com/user/akun-go/users"
)

type nopStore struct{ users.Store }

func (nopStore) List(context.Context) ([]users.User, error) { return []users.User{}, nil }

func newTestRouter(t *testing.T, imagesDir string, ping func(context.Context) error) http.Handler {
	t.Helper()
	log, _ := test.NewNullLogger()

	tokens, err := auth.NewTokenIssuer("router-secret")
	require.NoError(t, err)
	images, err := storage.NewLocalStore(t.TempDir())
	require.NoError(t, err)
	runner := background.NewRunner(log, 1, 1)
	t.Cleanup(func() { _ = runner.Stop(context.Background()) })

	svc := users.NewAccountService(nopStore{}, auth.NewBcryptHasher(bcrypt.MinCost), tokens, images, runner, "http://localhost:5000", log)
	return newRouter(routerConfig{
		log:       log,
		handlers:  users.NewHandlers(svc, log),
		tokens:    tokens,
		imagesDir: imagesDir,
		ping:      ping,
	})
}

func TestRouter_Healthz(t *testing.T) {
	h := newTestRouter(t, "", func(context.Context) error { return nil })
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	h = newTestRouter(t, "", func(context.Context) error { return errors.New("db down") })
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestRouter_MountsAccountRoutes(t *testing.T) {
	h := newTestRouter(t, "", nil)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/users", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("Content-Type"))

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/me", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"msg":"Unauthorized"}`, rec.Body.String())
}

func TestRouter_ServesImages(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "abc.png"), []byte("png"), 0o644))
	h := newTestRouter(t, dir, nil)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/images/abc.png", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "png", rec.Body.String())

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/images/", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRouter_SwaggerDoc(t *testing.T) {
	h := newTestRouter(t, "", nil)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/swagger/doc.json", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
	assert.Contains(t, doc["paths"], "/login")
}

func TestRecoverer(t *testing.T) {
	log, hook := test.NewNullLogger()
	h := recoverer(log)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"msg":"`+apperror.InternalMessage+`"}`, rec.Body.String())
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, "handler panicked", hook.LastEntry().Message)
}
