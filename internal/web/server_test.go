package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgard/aiphone/internal/config"
	"github.com/edgard/aiphone/internal/profile"
	"github.com/edgard/aiphone/internal/reply"
	"github.com/edgard/aiphone/internal/session"
	"github.com/edgard/aiphone/internal/transcript"
)

type fakeStatus struct {
	mu        sync.Mutex
	current   string
	listeners []func(string)
}

func (f *fakeStatus) Current() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.current
}

func (f *fakeStatus) OnChange(fn func(string)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listeners = append(f.listeners, fn)
}

func (f *fakeStatus) set(s string) {
	f.mu.Lock()
	f.current = s
	listeners := append([]func(string){}, f.listeners...)
	f.mu.Unlock()
	for _, fn := range listeners {
		fn(s)
	}
}

type echoReplier struct{}

func (echoReplier) FetchWelcome(context.Context, profile.Profile) reply.Reply {
	return reply.Reply{Text: "Welcome!"}
}

func (echoReplier) FetchReply(_ context.Context, _ profile.Profile, text string) reply.Reply {
	return reply.Reply{Text: "echo " + text}
}

type pinger struct{ err error }

func (p pinger) Ping(context.Context) error { return p.err }

type fixture struct {
	server   *Server
	status   *fakeStatus
	sessions *session.Manager
}

func newFixture(t *testing.T, stored *profile.Profile, health error) *fixture {
	t.Helper()
	store := profile.NewStore(profile.NewMemoryBackend(), "aiPhoneConfig", nil)
	if stored != nil {
		require.NoError(t, store.Save(context.Background(), *stored))
	}
	sessions := session.NewManager(store, echoReplier{})
	t.Cleanup(func() { _ = sessions.Close(context.Background()) })

	status := &fakeStatus{current: "14:05 | Wi-Fi | 82%"}
	cfg := config.ServerConfig{Addr: ":0", ShutdownTimeout: time.Second, MaxAvatarBytes: 1024}
	return &fixture{
		server:   NewServer(cfg, sessions, status, pinger{err: health}, nil),
		status:   status,
		sessions: sessions,
	}
}

func (f *fixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else {
			require.NoError(t, json.NewEncoder(&buf).Encode(body))
		}
	}
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, httptest.NewRequest(method, path, &buf))
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func TestIndexAndStatus(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil, nil)

	rec := f.do(t, http.MethodGet, "/", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rec.Body.String(), "AI Phone")

	rec = f.do(t, http.MethodGet, "/api/status", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "14:05 | Wi-Fi | 82%", decode[map[string]string](t, rec)["status"])
}

func TestHealth(t *testing.T) {
	t.Parallel()

	assert.Equal(t, http.StatusOK, newFixture(t, nil, nil).do(t, http.MethodGet, "/healthz", nil).Code)
	assert.Equal(t, http.StatusServiceUnavailable,
		newFixture(t, nil, errors.New("redis down")).do(t, http.MethodGet, "/healthz", nil).Code)
}

func TestConfigureAndChat(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil, nil)

	rec := f.do(t, http.MethodPost, "/api/sessions", nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	view := decode[sessionView](t, rec)
	assert.Equal(t, session.StateAwaitingConfiguration, view.State)
	assert.Nil(t, view.Profile)
	base := "/api/sessions/" + view.ID

	rec = f.do(t, http.MethodPost, base+"/messages", messageRequest{Text: "hi"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = f.do(t, http.MethodPost, base+"/config", session.Form{APIURL: "http://x"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decode[errorResponse](t, rec).Error, "required")

	rec = f.do(t, http.MethodPost, base+"/config", "{not json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPost, base+"/config", session.Form{
		Avatar: "🙂", Name: "Mia", APIURL: "http://x", APIKey: "sk-secret",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "sk-secret", "display profile must not leak the key")
	view = decode[sessionView](t, rec)
	assert.Equal(t, session.StateActive, view.State)
	require.NotNil(t, view.Profile)
	assert.Equal(t, "Mia", view.Profile.Name)
	assert.Equal(t, session.AvatarText, view.Profile.AvatarKind)

	rec = f.do(t, http.MethodPost, base+"/config", session.Form{APIURL: "http://y", APIKey: "k"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = f.do(t, http.MethodPost, base+"/messages", messageRequest{Text: "   "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPost, base+"/messages", messageRequest{Text: " hello "})
	require.Equal(t, http.StatusAccepted, rec.Code)
	entry := decode[transcript.Entry](t, rec)
	assert.Equal(t, "hello", entry.Text)
	assert.Equal(t, transcript.RoleUser, entry.Role)

	require.Eventually(t, func() bool {
		rec := f.do(t, http.MethodGet, base+"/messages?after=0", nil)
		return len(decode[[]transcript.Entry](t, rec)) == 3
	}, time.Second, 10*time.Millisecond)

	rec = f.do(t, http.MethodGet, base+"/messages?after=2", nil)
	entries := decode[[]transcript.Entry](t, rec)
	require.Len(t, entries, 1)
	assert.Equal(t, 3, entries[0].Seq)

	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodGet, base+"/messages?after=-1", nil).Code)
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodGet, base+"/messages?after=x", nil).Code)
}

func TestStoredProfileStartsActive(t *testing.T) {
	t.Parallel()
	stored := profile.New("https://example.com/a.png", "Mia", "", "http://x", "k", "")
	f := newFixture(t, &stored, nil)

	rec := f.do(t, http.MethodPost, "/api/sessions", nil)
	view := decode[sessionView](t, rec)
	assert.Equal(t, session.StateActive, view.State)
	require.NotNil(t, view.Profile)
	assert.Equal(t, session.AvatarImage, view.Profile.AvatarKind)

	rec = f.do(t, http.MethodGet, "/api/sessions/"+view.ID, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestUnknownSession(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil, nil)

	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/api/sessions/nope"},
		{http.MethodPost, "/api/sessions/nope/config"},
		{http.MethodPost, "/api/sessions/nope/messages"},
		{http.MethodGet, "/api/sessions/nope/messages"},
		{http.MethodGet, "/api/sessions/nope/ws"},
	} {
		rec := f.do(t, tc.method, tc.path, "{}")
		assert.Equal(t, http.StatusNotFound, rec.Code, "%s %s", tc.method, tc.path)
	}
}

var pngHeader = []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A, 0, 0, 0, 0x0D, 'I', 'H', 'D', 'R'}

func uploadAvatar(t *testing.T, f *fixture, content []byte) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("avatar", "avatar.bin")
	require.NoError(t, err)
	_, err = fw.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/avatar", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)
	return rec
}

func TestAvatarUpload(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil, nil)

	rec := uploadAvatar(t, f, pngHeader)
	require.Equal(t, http.StatusOK, rec.Code)
	avatar := decode[avatarResponse](t, rec).Avatar
	assert.True(t, strings.HasPrefix(avatar, "data:image/png;base64,"), avatar)
	assert.Equal(t, session.AvatarImage, session.ClassifyAvatar(avatar))

	rec = uploadAvatar(t, f, []byte("just some text, not a picture"))
	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)

	rec = uploadAvatar(t, f, append(append([]byte{}, pngHeader...), make([]byte, 2048)...))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/avatar", "plain body")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWebSocketPushesEntriesAndStatus(t *testing.T) {
	t.Parallel()
	stored := profile.New("", "", "", "http://x", "k", "")
	f := newFixture(t, &stored, nil)

	srv := httptest.NewServer(f.server.Handler())
	t.Cleanup(srv.Close)

	sess := f.sessions.Bootstrap(context.Background())
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/sessions/" + sess.ID + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	read := func() frame {
		t.Helper()
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		var fr frame
		require.NoError(t, conn.ReadJSON(&fr))
		return fr
	}

	first := read()
	assert.Equal(t, "status", first.Type)
	assert.Equal(t, "14:05 | Wi-Fi | 82%", first.Status)

	welcome := read()
	require.Equal(t, "entry", welcome.Type)
	assert.Equal(t, "Welcome!", welcome.Entry.Text)
	assert.Equal(t, 1, welcome.Entry.Seq)

	_, err = sess.Send(context.Background(), "ping")
	require.NoError(t, err)

	user := read()
	require.Equal(t, "entry", user.Type)
	assert.Equal(t, "ping", user.Entry.Text)
	answer := read()
	require.Equal(t, "entry", answer.Type)
	assert.Equal(t, "echo ping", answer.Entry.Text)

	f.status.set("14:06 | Wi-Fi | 81%")
	st := read()
	assert.Equal(t, "status", st.Type)
	assert.Equal(t, "14:06 | Wi-Fi | 81%", st.Status)
}

func TestOpenPageSurvivesSweep(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	stored := profile.New("", "", "", "http://x", "k", "")
	f := newFixture(t, &stored, nil)

	srv := httptest.NewServer(f.server.Handler())
	t.Cleanup(srv.Close)

	sess := f.sessions.Bootstrap(ctx)
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/sessions/" + sess.ID + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var fr frame
	require.NoError(t, conn.ReadJSON(&fr))
	require.Equal(t, "status", fr.Type)

	assert.Equal(t, 0, f.sessions.Sweep(ctx, -time.Hour), "attached session kept")
	rec := f.do(t, http.MethodPost, "/api/sessions/"+sess.ID+"/messages", messageRequest{Text: "still here"})
	assert.Equal(t, http.StatusAccepted, rec.Code)

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return !sess.Attached() }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 1, f.sessions.Sweep(ctx, -time.Hour))
}
