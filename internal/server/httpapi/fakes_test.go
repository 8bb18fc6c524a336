package httpapi

import (
	"bytes"
	"context"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"path/filepath"
	"testing"
	"time"

	"github.com/dmitrijs2005/ecomarket/internal/common"
	"github.com/dmitrijs2005/ecomarket/internal/logging"
	"github.com/dmitrijs2005/ecomarket/internal/server/auth"
	"github.com/dmitrijs2005/ecomarket/internal/server/services"
	"github.com/dmitrijs2005/ecomarket/internal/server/storage"
	"github.com/stretchr/testify/require"
)

var errBoom = errors.New("boom")

const validToken = "good-token"

type fakeAuth struct {
	loginRes    *services.AuthResult
	loginErr    error
	registerRes *services.AuthResult
	registerErr error
	authErr     error

	gotIdentifier string
	gotPassword   string
	gotUsername   string
	gotEmail      string
}

func (f *fakeAuth) Login(_ context.Context, identifier, password string) (*services.AuthResult, error) {
	f.gotIdentifier, f.gotPassword = identifier, password
	return f.loginRes, f.loginErr
}

func (f *fakeAuth) Register(_ context.Context, username, email, password string) (*services.AuthResult, error) {
	f.gotUsername, f.gotEmail, f.gotPassword = username, email, password
	return f.registerRes, f.registerErr
}

func (f *fakeAuth) Authenticate(_ context.Context, token string) (*auth.Principal, error) {
	if f.authErr != nil {
		return nil, f.authErr
	}
	if token != validToken {
		return nil, common.ErrorUnauthorized
	}
	return &auth.Principal{Identifier: "alice", PasswordHash: "h", Authorities: []string{common.RoleUser}}, nil
}

type fakePinger struct{ err error }

func (p fakePinger) PingContext(context.Context) error { return p.err }

type recordedAuth struct{ op, outcome string }

type fakeRecorder struct {
	routes  []string
	auths   []recordedAuth
	uploads []string
}

func (r *fakeRecorder) RecordRequest(_, route string, _ int, _ time.Duration) {
	r.routes = append(r.routes, route)
}

func (r *fakeRecorder) RecordAuth(op, outcome string) {
	r.auths = append(r.auths, recordedAuth{op, outcome})
}

func (r *fakeRecorder) RecordUpload(outcome string, _ int64) {
	r.uploads = append(r.uploads, outcome)
}

type testEnv struct {
	handler http.Handler
	auth    *fakeAuth
	store   *storage.LocalStore
	rec     *fakeRecorder
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store, err := storage.NewLocalStore(filepath.Join(t.TempDir(), "uploads"), logging.Nop())
	require.NoError(t, err)

	env := &testEnv{auth: &fakeAuth{}, store: store, rec: &fakeRecorder{}}
	env.handler = NewRouter(&Deps{
		Auth:            env.auth,
		Images:          store,
		PublicImagePath: "/images/",
		Metrics:         env.rec,
	})
	return env
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	e.handler.ServeHTTP(rr, req)
	return rr
}

// multipartBody builds a request body with a single "file" part.
func multipartBody(t *testing.T, field, filename, contentType string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="`+field+`"; filename="`+filename+`"`)
	if contentType != "" {
		h.Set("Content-Type", contentType)
	}
	part, err := mw.CreatePart(h)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	return &buf, mw.FormDataContentType()
}

type logEntry struct {
	level string
	msg   string
	args  map[string]any
}

// recordingLogger keeps every entry for assertions.
type recordingLogger struct {
	entries *[]logEntry
}

func newRecordingLogger() recordingLogger {
	return recordingLogger{entries: &[]logEntry{}}
}

func (l recordingLogger) add(level, msg string, args []any) {
	kv := map[string]any{}
	for i := 0; i+1 < len(args); i += 2 {
		if k, ok := args[i].(string); ok {
			kv[k] = args[i+1]
		}
	}
	*l.entries = append(*l.entries, logEntry{level: level, msg: msg, args: kv})
}

func (l recordingLogger) Debug(_ context.Context, msg string, args ...any) { l.add("debug", msg, args) }
func (l recordingLogger) Info(_ context.Context, msg string, args ...any)  { l.add("info", msg, args) }
func (l recordingLogger) Warn(_ context.Context, msg string, args ...any)  { l.add("warn", msg, args) }
func (l recordingLogger) Error(_ context.Context, msg string, args ...any) { l.add("error", msg, args) }
func (l recordingLogger) With(...any) logging.Logger                      { return l }

func (l recordingLogger) requests() []logEntry {
	var out []logEntry
	for _, e := range *l.entries {
		if e.msg == "http_request" {
			out = append(out, e)
		}
	}
	return out
}
