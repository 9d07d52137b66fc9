package judge0_test

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/lesson-runner/internal/executor"
	"github.com/sakif/lesson-runner/internal/executor/judge0"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

// fakeJudge0 answers POST /submissions with a canned body and records what it received.
type fakeJudge0 struct {
	mu       sync.Mutex
	status   int
	response string
	seen     received
}

type received struct {
	gotBody  map[string]any
	gotQuery string
	gotAuth  string
	gotToken string
	calls    int
}

func (f *fakeJudge0) last() received {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.seen
}

func (f *fakeJudge0) server(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("POST /submissions", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.seen.calls++
		f.seen.gotQuery = r.URL.RawQuery
		f.seen.gotAuth = r.Header.Get("Authorization")
		f.seen.gotToken = r.Header.Get("X-Auth-Token")
		_ = json.NewDecoder(r.Body).Decode(&f.seen.gotBody)

		status := f.status
		if status == 0 {
			status = http.StatusCreated
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(f.response))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestSubmit_StatusMapping(t *testing.T) {
	tests := []struct {
		name        string
		response    string
		wantSuccess bool
		wantLabel   string
		wantStdout  string
		wantStderr  string
	}{
		{
			name:        "accepted",
			response:    `{"stdout":"hello\n","stderr":null,"compile_output":null,"time":"0.012","memory":3456,"token":"tok-1","status":{"id":3,"description":"Accepted"}}`,
			wantSuccess: true,
			wantLabel:   "Accepted",
			wantStdout:  "hello\n",
		},
		{
			name:       "compilation error uses compile_output",
			response:   `{"stdout":null,"stderr":null,"compile_output":"SyntaxError: invalid syntax","status":{"id":6,"description":"Compilation Error"}}`,
			wantLabel:  "Compilation Error",
			wantStderr: "SyntaxError: invalid syntax",
		},
		{
			name:       "runtime error prefers stderr",
			response:   `{"stdout":"partial\n","stderr":"ZeroDivisionError","compile_output":"ignored","status":{"id":11,"description":"Runtime Error (NZEC)"}}`,
			wantLabel:  "Runtime Error (NZEC)",
			wantStdout: "partial\n",
			wantStderr: "ZeroDivisionError",
		},
		{
			name:       "time limit exceeded",
			response:   `{"stdout":null,"status":{"id":5,"description":"Time Limit Exceeded"},"time":5.001}`,
			wantLabel:  "Time Limit Exceeded",
			wantStderr: "",
		},
		{
			name:       "internal error falls back to message",
			response:   `{"message":"No such file or directory @ rb_sysopen","status":{"id":13,"description":"Internal Error"}}`,
			wantLabel:  "Internal Error",
			wantStderr: "No such file or directory @ rb_sysopen",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &fakeJudge0{response: tt.response}
			srv := fake.server(t)
			client := judge0.New(judge0.Config{BaseURL: srv.URL}, testLogger())

			res := client.Submit(context.Background(), judge0.SubmitRequest{Source: "print('hello')", TimeoutSeconds: 5})

			assert.Equal(t, tt.wantSuccess, res.Success)
			assert.Equal(t, tt.wantLabel, res.StatusLabel)
			assert.Equal(t, tt.wantStdout, res.Stdout)
			assert.Equal(t, tt.wantStderr, res.Stderr)
			assert.Equal(t, executor.ModeRemote, res.Mode)
			assert.NoError(t, res.Validate())
			assert.Equal(t, 1, fake.last().calls, "exactly one remote attempt")
		})
	}
}

func TestSubmit_RequestShape(t *testing.T) {
	fake := &fakeJudge0{response: `{"stdout":"","status":{"id":3,"description":"Accepted"}}`}
	srv := fake.server(t)
	client := judge0.New(judge0.Config{BaseURL: srv.URL + "/", AuthToken: "secret-token"}, testLogger())

	res := client.Submit(context.Background(), judge0.SubmitRequest{Source: "print(input())", Stdin: "42\n"})
	require.True(t, res.Success)

	assert.Equal(t, "wait=true", fake.last().gotQuery)
	assert.Equal(t, "print(input())", fake.last().gotBody["source_code"])
	assert.Equal(t, "42\n", fake.last().gotBody["stdin"])
	assert.EqualValues(t, judge0.PythonLanguageID, fake.last().gotBody["language_id"])
	assert.Equal(t, "secret-token", fake.last().gotToken)
	assert.Empty(t, fake.last().gotAuth)
}

func TestSubmit_BearerToken(t *testing.T) {
	fake := &fakeJudge0{response: `{"status":{"id":3,"description":"Accepted"}}`}
	srv := fake.server(t)
	client := judge0.New(judge0.Config{BaseURL: srv.URL, BearerToken: "gateway-token"}, testLogger())

	res := client.Submit(context.Background(), judge0.SubmitRequest{Source: "pass", LanguageID: 92})
	require.True(t, res.Success)

	assert.Equal(t, "Bearer gateway-token", fake.last().gotAuth)
	assert.EqualValues(t, 92, fake.last().gotBody["language_id"])
}

func TestSubmit_Telemetry(t *testing.T) {
	fake := &fakeJudge0{response: `{"stdout":"ok","time":"0.012","memory":3456,"token":"abc","status":{"id":3,"description":"Accepted"}}`}
	srv := fake.server(t)
	client := judge0.New(judge0.Config{BaseURL: srv.URL}, testLogger())

	res := client.Submit(context.Background(), judge0.SubmitRequest{Source: "print('ok')"})

	require.NotNil(t, res.TimeMillis)
	assert.InDelta(t, 12.0, *res.TimeMillis, 0.0001)
	require.NotNil(t, res.MemoryKB)
	assert.Equal(t, int64(3456), *res.MemoryKB)
	assert.Equal(t, "abc", res.Token)
}

func TestSubmit_NoTelemetryIsFine(t *testing.T) {
	fake := &fakeJudge0{response: `{"stdout":"ok","status":{"id":3,"description":"Accepted"}}`}
	srv := fake.server(t)
	client := judge0.New(judge0.Config{BaseURL: srv.URL}, testLogger())

	res := client.Submit(context.Background(), judge0.SubmitRequest{Source: "print('ok')"})

	assert.True(t, res.Success)
	assert.Nil(t, res.TimeMillis)
	assert.Nil(t, res.MemoryKB)
}

func TestSubmit_TransportFailures(t *testing.T) {
	t.Run("non-2xx status", func(t *testing.T) {
		fake := &fakeJudge0{status: http.StatusUnprocessableEntity, response: `{"language_id":["language with id 999 doesn't exist"]}`}
		srv := fake.server(t)
		client := judge0.New(judge0.Config{BaseURL: srv.URL}, testLogger())

		res := client.Submit(context.Background(), judge0.SubmitRequest{Source: "x", LanguageID: 999})
		assert.False(t, res.Success)
		assert.Equal(t, executor.StatusAPIError, res.StatusLabel)
		assert.Contains(t, res.Stderr, "422")
	})

	t.Run("malformed response", func(t *testing.T) {
		fake := &fakeJudge0{response: `<html>gateway</html>`}
		srv := fake.server(t)
		client := judge0.New(judge0.Config{BaseURL: srv.URL}, testLogger())

		res := client.Submit(context.Background(), judge0.SubmitRequest{Source: "x"})
		assert.False(t, res.Success)
		assert.Equal(t, executor.StatusAPIError, res.StatusLabel)
	})

	t.Run("response without status", func(t *testing.T) {
		fake := &fakeJudge0{response: `{"token":"abc"}`}
		srv := fake.server(t)
		client := judge0.New(judge0.Config{BaseURL: srv.URL}, testLogger())

		res := client.Submit(context.Background(), judge0.SubmitRequest{Source: "x"})
		assert.Equal(t, executor.StatusAPIError, res.StatusLabel)
	})

	t.Run("unreachable base url", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		url := srv.URL
		srv.Close()

		client := judge0.New(judge0.Config{BaseURL: url}, testLogger())
		res := client.Submit(context.Background(), judge0.SubmitRequest{Source: "x", TimeoutSeconds: 1})

		assert.False(t, res.Success)
		assert.Equal(t, executor.StatusAPIError, res.StatusLabel)
		assert.Contains(t, res.Stderr, "Judge0 API error")
		assert.NoError(t, res.Validate())
	})
}

func TestExecute_AdaptsRequest(t *testing.T) {
	fake := &fakeJudge0{response: `{"stdout":"hi\n","status":{"id":3,"description":"Accepted"}}`}
	srv := fake.server(t)
	client := judge0.New(judge0.Config{BaseURL: srv.URL, LanguageID: 50}, testLogger())

	res, err := client.Execute(context.Background(), executor.ExecutionRequest{
		Category:   "basics",
		Identifier: "hello",
		Source:     "int main(){}",
		Stdin:      "in",
		Mode:       executor.ModeRemote,
	})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "hi\n", res.Stdout)
	assert.EqualValues(t, 50, fake.last().gotBody["language_id"])
	assert.Equal(t, "in", fake.last().gotBody["stdin"])
}

func TestSubmitFile(t *testing.T) {
	fake := &fakeJudge0{response: `{"stdout":"file\n","status":{"id":3,"description":"Accepted"}}`}
	srv := fake.server(t)
	client := judge0.New(judge0.Config{BaseURL: srv.URL}, testLogger())

	t.Run("reads and submits", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "lesson.py")
		require.NoError(t, os.WriteFile(path, []byte("print('file')"), 0o644))

		res := client.SubmitFile(context.Background(), path, "", 5)
		assert.True(t, res.Success)
		assert.Equal(t, "print('file')", fake.last().gotBody["source_code"])
	})

	t.Run("missing file", func(t *testing.T) {
		res := client.SubmitFile(context.Background(), filepath.Join(t.TempDir(), "nope.py"), "", 5)
		assert.False(t, res.Success)
		assert.Equal(t, executor.StatusFileError, res.StatusLabel)
		assert.Contains(t, res.Stderr, "Error reading file")
	})
}

func TestHealthCheck(t *testing.T) {
	t.Run("200 from /about", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/about" {
				http.NotFound(w, r)
				return
			}
			_, _ = w.Write([]byte(`{"version":"1.13.1"}`))
		}))
		defer srv.Close()

		assert.True(t, judge0.New(judge0.Config{BaseURL: srv.URL}, testLogger()).HealthCheck(context.Background()))
	})

	t.Run("non-200 is unhealthy", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer srv.Close()

		assert.False(t, judge0.New(judge0.Config{BaseURL: srv.URL}, testLogger()).HealthCheck(context.Background()))
	})

	t.Run("connection failure is unhealthy", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		url := srv.URL
		srv.Close()

		assert.False(t, judge0.New(judge0.Config{BaseURL: url}, testLogger()).HealthCheck(context.Background()))
	})
}

func TestListLanguages(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/languages" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(`[{"id":71,"name":"Python (3.8.1)"},{"id":50,"name":"C (GCC 9.2.0)"}]`))
	}))
	defer srv.Close()

	langs, err := judge0.New(judge0.Config{BaseURL: srv.URL}, testLogger()).ListLanguages(context.Background())
	require.NoError(t, err)
	require.Len(t, langs, 2)
	assert.Equal(t, 71, langs[0].ID)
	assert.Equal(t, "C (GCC 9.2.0)", langs[1].Name)

	t.Run("transport failure is an error", func(t *testing.T) {
		dead := httptest.NewServer(http.NotFoundHandler())
		url := dead.URL
		dead.Close()

		_, err := judge0.New(judge0.Config{BaseURL: url}, testLogger()).ListLanguages(context.Background())
		assert.Error(t, err)
	})
}
