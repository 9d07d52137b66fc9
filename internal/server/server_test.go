package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/lesson-runner/internal/auth"
	"github.com/sakif/lesson-runner/internal/executor"
	"github.com/sakif/lesson-runner/internal/executor/judge0"
	"github.com/sakif/lesson-runner/internal/model"
	"github.com/sakif/lesson-runner/internal/progress"
	"github.com/sakif/lesson-runner/internal/service"
)

// stubLessons satisfies handler.Lessons and handler.Dispatcher with fixed data.
type stubLessons struct{ runs int }

func (s *stubLessons) Run(_ context.Context, category, identifier string, _ service.RunOptions) (*executor.ExecutionResult, error) {
	s.runs++
	return &executor.ExecutionResult{
		Success: true, StatusLabel: executor.StatusAccepted, Mode: executor.ModeLocal,
		Lesson: executor.LessonRef{Category: category, Identifier: identifier},
	}, nil
}
func (s *stubLessons) Execute(_ context.Context, req executor.ExecutionRequest) (*executor.ExecutionResult, error) {
	s.runs++
	return &executor.ExecutionResult{Success: true, StatusLabel: executor.StatusAccepted, Mode: req.Mode}, nil
}
func (s *stubLessons) Render(context.Context, string, string) (*model.Lesson, error) {
	return &model.Lesson{Category: "basics", Identifier: "01_hello", Source: "print(1)"}, nil
}
func (s *stubLessons) Info(context.Context, string, string) (*model.LessonInfo, error) {
	return &model.LessonInfo{Name: "01_hello.py"}, nil
}
func (s *stubLessons) List(context.Context, string) ([]string, error) { return []string{"01_hello"}, nil }
func (s *stubLessons) Catalogue(context.Context) (map[string][]string, error) {
	return map[string][]string{"basics": {"01_hello"}}, nil
}
func (s *stubLessons) History() []model.HistoryEntry { return []model.HistoryEntry{} }
func (s *stubLessons) Progress(context.Context) (progress.Summary, error) {
	return progress.Summary{}, nil
}

type stubRemote struct{}

func (stubRemote) HealthCheck(context.Context) bool { return true }
func (stubRemote) BaseURL() string                  { return "http://judge0.test" }
func (stubRemote) ListLanguages(context.Context) ([]judge0.LanguageDescriptor, error) {
	return []judge0.LanguageDescriptor{{ID: 71, Name: "Python"}}, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestServer(t *testing.T, cfg Config) (*Server, *stubLessons) {
	t.Helper()
	stub := &stubLessons{}
	s, err := New(cfg, Deps{Lessons: stub, Execute: stub, Remote: stubRemote{}}, testLogger())
	require.NoError(t, err)
	return s, stub
}

func call(t *testing.T, h http.Handler, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, path, r)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestRoutes_Open(t *testing.T) {
	s, stub := newTestServer(t, Config{MaxTimeoutSeconds: 60})
	h := s.Handler()

	routes := []struct{ method, path string }{
		{http.MethodGet, "/healthz"},
		{http.MethodGet, "/api/lessons"},
		{http.MethodGet, "/api/lessons/basics"},
		{http.MethodGet, "/api/lessons/basics/01_hello"},
		{http.MethodGet, "/api/lessons/basics/01_hello/info"},
		{http.MethodPost, "/api/lessons/basics/01_hello/run"},
		{http.MethodGet, "/api/history"},
		{http.MethodGet, "/api/progress"},
		{http.MethodGet, "/api/remote/health"},
		{http.MethodGet, "/api/remote/languages"},
	}
	for _, rt := range routes {
		rr := call(t, h, rt.method, rt.path, "", "")
		assert.Equal(t, http.StatusOK, rr.Code, "%s %s", rt.method, rt.path)
	}

	rr := call(t, h, http.MethodPost, "/api/execute", "", `{"identifier":"x","source":"print(1)"}`)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, 2, stub.runs)

	// No passphrase endpoint without a secret.
	rr = call(t, h, http.MethodPost, "/auth/token", "", `{"passphrase":"x"}`)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestRoutes_Authenticated(t *testing.T) {
	pp := auth.NewPassphraseWithCost(4)
	hash, err := pp.Hash("let me in")
	require.NoError(t, err)

	s, stub := newTestServer(t, Config{
		JWTSecret:      "server-test-secret-0123456789",
		PassphraseHash: hash,
	})
	h := s.Handler()

	assert.Equal(t, http.StatusOK, call(t, h, http.MethodGet, "/healthz", "", "").Code)
	assert.Equal(t, http.StatusUnauthorized, call(t, h, http.MethodGet, "/api/lessons", "", "").Code)

	token := func(scope string) string {
		rr := call(t, h, http.MethodPost, "/auth/token", "", fmt.Sprintf(`{"passphrase":"let me in","scope":%q}`, scope))
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
		var body struct{ Token string }
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
		return body.Token
	}
	read, run := token(auth.ScopeRead), token(auth.ScopeRun)

	assert.Equal(t, http.StatusOK, call(t, h, http.MethodGet, "/api/lessons", read, "").Code)
	assert.Equal(t, http.StatusForbidden, call(t, h, http.MethodPost, "/api/lessons/basics/01_hello/run", read, "").Code)
	assert.Equal(t, 0, stub.runs)

	assert.Equal(t, http.StatusOK, call(t, h, http.MethodPost, "/api/lessons/basics/01_hello/run", run, "").Code)
	assert.Equal(t, http.StatusOK, call(t, h, http.MethodGet, "/api/history", run, "").Code)
	assert.Equal(t, 1, stub.runs)
}

func TestNew_ShortSecret(t *testing.T) {
	_, err := New(Config{JWTSecret: "short"}, Deps{Lessons: &stubLessons{}, Execute: &stubLessons{}, Remote: stubRemote{}}, testLogger())
	assert.Error(t, err)
}

func TestWriteTimeout(t *testing.T) {
	s, _ := newTestServer(t, Config{MaxTimeoutSeconds: 120, RemoteSlack: 10 * time.Second})
	assert.Equal(t, 145*time.Second, s.writeTimeout())

	s, _ = newTestServer(t, Config{})
	assert.Zero(t, s.writeTimeout(), "no cap, no write deadline")
}

func TestServe_ShutsDownOnCancel(t *testing.T) {
	s, _ := newTestServer(t, Config{ShutdownTimeout: 2 * time.Second})
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + ln.Addr().String() + "/healthz")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
