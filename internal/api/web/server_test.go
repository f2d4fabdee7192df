package web

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/podcastr/internal/app/notification"
	"github.com/osa030/podcastr/internal/app/panel"
	"github.com/osa030/podcastr/internal/app/playback"
	"github.com/osa030/podcastr/internal/app/session"
	"github.com/osa030/podcastr/internal/domain/episode"
	"github.com/osa030/podcastr/internal/infra/config"
	"github.com/osa030/podcastr/internal/infra/episodeapi"
)

type fakeSource struct {
	mu       sync.Mutex
	episodes []episode.Episode
	listErr  error
	gets     int
}

func (f *fakeSource) ListEpisodes(_ context.Context, opts episodeapi.ListOptions) ([]episode.Episode, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	n := len(f.episodes)
	if opts.Limit > 0 && opts.Limit < n {
		n = opts.Limit
	}
	out := make([]episode.Episode, n)
	copy(out, f.episodes[:n])
	return out, nil
}

func (f *fakeSource) getCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.gets
}

func (f *fakeSource) GetEpisode(_ context.Context, id string) (episode.Episode, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gets++
	ep, i := episode.Find(f.episodes, id)
	if i < 0 {
		return episode.Episode{}, errors.WithStack(episodeapi.ErrNotFound)
	}
	return ep, nil
}

func testEpisodes() []episode.Episode {
	return []episode.Episode{
		{ID: "a", Title: "Open Source", Members: "Diego", Duration: 3981, URL: "https://cdn.test/a.m4a",
			Description: "<p>Nesse episódio</p>", PublishedAt: time.Date(2021, 1, 8, 14, 0, 0, 0, time.UTC)},
		{ID: "b", Title: "Como virar ninja", Members: "Richard", Duration: 2800, URL: "https://cdn.test/b.m4a",
			PublishedAt: time.Date(2021, 1, 5, 14, 0, 0, 0, time.UTC)},
		{ID: "c", Title: "Comunidades", Members: "Mayk", Duration: 65, URL: "https://cdn.test/c.m4a",
			PublishedAt: time.Date(2021, 1, 2, 14, 0, 0, 0, time.UTC)},
	}
}

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			Addr:      ":0",
			RateLimit: config.RateLimitConfig{Disabled: true, RequestsPerMin: 600},
		},
		API: config.APIConfig{
			BaseURL:     "http://api.test",
			TimeoutSec:  1,
			LatestCount: 2,
			ListLimit:   12,
		},
		Site: config.SiteConfig{
			Title:   "Podcastr",
			Tagline: "O melhor para você ouvir, sempre",
			Locale:  "pt-BR",
		},
		Session: config.SessionConfig{
			CookieName:       "podcastr_session",
			EventBuffer:      16,
			KeepAliveSeconds: 15,
		},
	}
}

type testEnv struct {
	t        *testing.T
	server   *Server
	source   *fakeSource
	registry *session.Registry
	ts       *httptest.Server
}

func newTestEnv(t *testing.T, cfg *config.Config, source EpisodeSource) *testEnv {
	t.Helper()

	registry := session.NewRegistry(session.Config{IdleTTL: time.Hour, EventBuffer: 16})
	srv, err := NewServer(Options{Config: cfg, Episodes: source, Sessions: registry})
	require.NoError(t, err)
	srv.now = func() time.Time { return time.Date(2021, time.April, 22, 9, 0, 0, 0, time.UTC) }

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	t.Cleanup(registry.Close)

	env := &testEnv{t: t, server: srv, registry: registry, ts: ts}
	env.source, _ = source.(*fakeSource)
	return env
}

func newDefaultEnv(t *testing.T) *testEnv {
	return newTestEnv(t, testConfig(), &fakeSource{episodes: testEpisodes()})
}

// client returns an HTTP client with its own cookie jar, i.e. its own visitor.
func (e *testEnv) client() *http.Client {
	jar, err := cookiejar.New(nil)
	require.NoError(e.t, err)
	return &http.Client{Jar: jar, Timeout: 5 * time.Second}
}

func (e *testEnv) get(c *http.Client, path string) (int, string) {
	e.t.Helper()
	resp, err := c.Get(e.ts.URL + path)
	require.NoError(e.t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(e.t, err)
	return resp.StatusCode, string(body)
}

func (e *testEnv) post(c *http.Client, path string, body any) (int, []byte) {
	e.t.Helper()
	var r io.Reader = http.NoBody
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(e.t, err)
		r = bytes.NewReader(data)
	}
	resp, err := c.Post(e.ts.URL+"/player/"+path, "application/json", r)
	require.NoError(e.t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(e.t, err)
	return resp.StatusCode, data
}

type stateBody struct {
	State playback.State `json:"state"`
	Panel panel.View     `json:"panel"`
}

func (e *testEnv) command(c *http.Client, path string, body any) stateBody {
	e.t.Helper()
	status, data := e.post(c, path, body)
	require.Equal(e.t, http.StatusOK, status, string(data))
	var s stateBody
	require.NoError(e.t, json.Unmarshal(data, &s))
	return s
}

func (e *testEnv) state(c *http.Client) stateBody {
	e.t.Helper()
	status, body := e.get(c, "/player/state")
	require.Equal(e.t, http.StatusOK, status)
	var s stateBody
	require.NoError(e.t, json.Unmarshal([]byte(body), &s))
	return s
}

func TestNewServer_RequiresDependencies(t *testing.T) {
	registry := session.NewRegistry(session.Config{})
	defer registry.Close()

	_, err := NewServer(Options{Episodes: &fakeSource{}, Sessions: registry})
	assert.Error(t, err)
	_, err = NewServer(Options{Config: testConfig(), Sessions: registry})
	assert.Error(t, err)
	_, err = NewServer(Options{Config: testConfig(), Episodes: &fakeSource{}})
	assert.Error(t, err)
}

func TestHome(t *testing.T) {
	env := newDefaultEnv(t)
	c := env.client()

	resp, err := c.Get(env.ts.URL + "/")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/html; charset=utf-8", resp.Header.Get("Content-Type"))

	html := string(body)
	assert.Contains(t, html, "Últimos lançamentos")
	assert.Contains(t, html, "Todos episódios")
	assert.Contains(t, html, "Open Source")
	assert.Contains(t, html, "Comunidades")
	assert.Contains(t, html, "qui, 22 abril")
	assert.Contains(t, html, "8 jan 21")
	assert.Contains(t, html, "01:06:21")
	assert.Contains(t, html, `<small class="total-duration">01:54:06</small>`)
	assert.Contains(t, html, `data-play-index="2"`)
	assert.Contains(t, html, "Selecione um podcast para ouvir")

	var cookie *http.Cookie
	for _, ck := range resp.Cookies() {
		if ck.Name == "podcastr_session" {
			cookie = ck
		}
	}
	require.NotNil(t, cookie)
	assert.True(t, cookie.HttpOnly)
	assert.Equal(t, 1, env.registry.Count())

	// Same visitor, same session
	status, _ := env.get(c, "/")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, 1, env.registry.Count())
}

func TestHome_APIFailure(t *testing.T) {
	env := newTestEnv(t, testConfig(), &fakeSource{listErr: errors.New("connection refused")})

	status, body := env.get(env.client(), "/")
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Contains(t, body, "Não foi possível carregar os episódios")
}

func TestEpisodePage(t *testing.T) {
	env := newDefaultEnv(t)

	status, body := env.get(env.client(), "/episodes/a")
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, "<p>Nesse episódio</p>")
	assert.Contains(t, body, "8 jan 21")
	assert.Contains(t, body, "01:06:21")
	assert.Contains(t, body, `data-play-id="a"`)
	assert.Contains(t, body, "<title>Open Source | Podcastr</title>")
}

func TestEpisodePage_NotFound(t *testing.T) {
	env := newDefaultEnv(t)

	status, body := env.get(env.client(), "/episodes/missing")
	assert.Equal(t, http.StatusNotFound, status)
	assert.Contains(t, body, "Episódio não encontrado")

	status, body = env.get(env.client(), "/no/such/page")
	assert.Equal(t, http.StatusNotFound, status)
	assert.Contains(t, body, "Página não encontrada")
}

func TestEpisodePage_WithAPIClient(t *testing.T) {
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/episodes/a":
			fmt.Fprint(w, `{"id":"a","title":"Open Source","members":"Diego","published_at":"2021-01-08 14:00:00","file":{"url":"https://cdn.test/a.m4a","duration":"3981"}}`)
		case "/episodes/broken":
			w.WriteHeader(http.StatusInternalServerError)
		default:
			http.NotFound(w, r)
		}
	}))
	defer api.Close()

	client, err := episodeapi.New(episodeapi.Config{BaseURL: api.URL, Timeout: time.Second})
	require.NoError(t, err)
	env := newTestEnv(t, testConfig(), client)
	c := env.client()

	status, body := env.get(c, "/episodes/a")
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, "01:06:21")

	status, _ = env.get(c, "/episodes/zzz")
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = env.get(c, "/episodes/broken")
	assert.Equal(t, http.StatusInternalServerError, status)
}

func TestPlayer_PlayListAndNext(t *testing.T) {
	env := newDefaultEnv(t)
	c := env.client()

	s := env.command(c, "play-list", map[string]any{"episode_ids": []string{"a", "b", "c"}, "index": 1})
	assert.Equal(t, 1, s.State.CurrentIndex)
	assert.True(t, s.State.IsPlaying)
	assert.Len(t, s.State.Episodes, 3)
	assert.Equal(t, "b", s.Panel.Episode.ID)
	assert.False(t, s.Panel.Controls.PreviousDisabled)

	s = env.command(c, "next", nil)
	assert.Equal(t, 2, s.State.CurrentIndex)
	assert.False(t, s.State.HasNext)
	assert.True(t, s.Panel.Controls.NextDisabled)

	s = env.command(c, "next", nil)
	assert.Equal(t, -1, s.State.CurrentIndex)
	assert.True(t, s.State.IsPlaying)
	assert.Equal(t, playback.ModeStopped, s.State.Mode)
	assert.True(t, s.Panel.Empty)
}

func TestPlayer_PlayAndPrevious(t *testing.T) {
	env := newDefaultEnv(t)
	c := env.client()

	s := env.command(c, "play", map[string]any{"episode_id": "c"})
	assert.Equal(t, 0, s.State.CurrentIndex)
	assert.Len(t, s.State.Episodes, 1)
	assert.Equal(t, "01:05", s.Panel.DurationText)
	assert.True(t, s.Panel.Controls.ShuffleDisabled)

	s = env.command(c, "previous", nil)
	assert.Equal(t, 0, s.State.CurrentIndex)

	s = env.command(c, "toggle/play", nil)
	assert.False(t, s.State.IsPlaying)
	assert.Equal(t, playback.ModePaused, s.State.Mode)

	s = env.command(c, "toggle/play", nil)
	assert.True(t, s.State.IsPlaying)
}

func TestPlayer_Toggles(t *testing.T) {
	env := newDefaultEnv(t)
	c := env.client()

	env.command(c, "play-list", map[string]any{"episode_ids": []string{"a", "b"}, "index": 1})

	s := env.command(c, "toggle/shuffle", nil)
	assert.True(t, s.State.IsShuffling)
	assert.True(t, s.State.HasNext)

	s = env.command(c, "toggle/loop", nil)
	assert.True(t, s.State.IsLooping)

	s = env.command(c, "toggle/loop", nil)
	assert.False(t, s.State.IsLooping)
}

func TestPlayer_BadRequests(t *testing.T) {
	env := newDefaultEnv(t)
	c := env.client()

	tests := []struct {
		name   string
		path   string
		body   any
		status int
	}{
		{name: "play without id", path: "play", body: map[string]any{}, status: http.StatusBadRequest},
		{name: "play unknown episode", path: "play", body: map[string]any{"episode_id": "zzz"}, status: http.StatusNotFound},
		{name: "play-list empty", path: "play-list", body: map[string]any{"episode_ids": []string{}}, status: http.StatusBadRequest},
		{name: "play-list out of range", path: "play-list", body: map[string]any{"episode_ids": []string{"a"}, "index": 3}, status: http.StatusBadRequest},
		{name: "play-list negative index", path: "play-list", body: map[string]any{"episode_ids": []string{"a"}, "index": -1}, status: http.StatusBadRequest},
		{name: "play-list unknown episode", path: "play-list", body: map[string]any{"episode_ids": []string{"a", "zzz"}}, status: http.StatusNotFound},
		{name: "play-list too long", path: "play-list", body: map[string]any{"episode_ids": longIDs(maxPlaylistLen + 1)}, status: http.StatusBadRequest},
		{name: "unknown toggle", path: "toggle/volume", status: http.StatusNotFound},
		{name: "unknown media event", path: "media/seeking", status: http.StatusNotFound},
		{name: "negative seek", path: "seek", body: map[string]any{"seconds": -5}, status: http.StatusBadRequest},
		{name: "malformed json", path: "seek", body: json.RawMessage(`{"seconds": "x"}`), status: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := env.post(c, tt.path, tt.body)
			assert.Equal(t, tt.status, status, string(body))
		})
	}

	// Nothing above changed the store
	s := env.state(c)
	assert.Equal(t, -1, s.State.CurrentIndex)
	assert.Empty(t, s.State.Episodes)
}

func longIDs(n int) []string {
	ids := make([]string, n)
	for i := range ids {
		ids[i] = "a"
	}
	return ids
}

func TestPlayer_PlayListIndexCheckedBeforeFetching(t *testing.T) {
	env := newDefaultEnv(t)
	c := env.client()

	status, body := env.post(c, "play-list", map[string]any{"episode_ids": []string{"x1", "x2", "x3"}, "index": 3})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, string(body), "invalid_index")
	assert.Equal(t, 0, env.source.getCalls())
}

func TestPlayer_RejectsEpisodesWithoutMedia(t *testing.T) {
	eps := testEpisodes()
	eps[1].URL = ""
	env := newTestEnv(t, testConfig(), &fakeSource{episodes: eps})
	c := env.client()

	status, body := env.post(c, "play", map[string]any{"episode_id": "b"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, string(body), "not_playable")

	status, body = env.post(c, "play-list", map[string]any{"episode_ids": []string{"a", "b"}, "index": 0})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, string(body), "not_playable")

	assert.Equal(t, -1, env.state(c).State.CurrentIndex)
}

func TestPlayer_MediaEvents(t *testing.T) {
	env := newDefaultEnv(t)
	c := env.client()

	env.command(c, "play", map[string]any{"episode_id": "a"})

	status, _ := env.post(c, "media/pause", map[string]any{"current_time": 1.5})
	assert.Equal(t, http.StatusNoContent, status)
	assert.False(t, env.state(c).State.IsPlaying)

	status, _ = env.post(c, "media/play", nil)
	assert.Equal(t, http.StatusNoContent, status)
	assert.True(t, env.state(c).State.IsPlaying)

	// The episode change resets progress asynchronously; keep reporting until
	// the reported time sticks.
	var s stateBody
	require.Eventually(t, func() bool {
		env.post(c, "media/timeupdate", map[string]any{"current_time": 12.7})
		s = env.state(c)
		return s.Panel.Progress == 12
	}, 2*time.Second, 20*time.Millisecond)
	assert.Equal(t, "00:12", s.Panel.ProgressText)

	status, _ = env.post(c, "media/ended", nil)
	assert.Equal(t, http.StatusNoContent, status)
	s = env.state(c)
	assert.Equal(t, -1, s.State.CurrentIndex)
	assert.Equal(t, 0, s.Panel.Progress)
}

func TestPlayer_ReloadKeepsPosition(t *testing.T) {
	env := newDefaultEnv(t)
	c := env.client()

	env.command(c, "play", map[string]any{"episode_id": "a"})

	var s stateBody
	require.Eventually(t, func() bool {
		env.post(c, "media/loadedmetadata", nil)
		env.post(c, "media/timeupdate", map[string]any{"current_time": 1200.4})
		s = env.state(c)
		return s.Panel.Progress == 1200
	}, 2*time.Second, 20*time.Millisecond)

	// the next page's audio element loads the same episode
	status, _ := env.post(c, "media/loadedmetadata", nil)
	assert.Equal(t, http.StatusNoContent, status)

	s = env.state(c)
	assert.Equal(t, 1200, s.Panel.Progress)
	assert.True(t, s.State.IsPlaying)
}

func TestPlayer_EndedAfterPauseKeepsPlaying(t *testing.T) {
	env := newDefaultEnv(t)
	c := env.client()

	env.command(c, "play-list", map[string]any{"episode_ids": []string{"a", "b"}, "index": 0})

	env.post(c, "media/pause", map[string]any{"current_time": 60})
	status, _ := env.post(c, "media/ended", nil)
	assert.Equal(t, http.StatusNoContent, status)

	s := env.state(c)
	assert.Equal(t, 1, s.State.CurrentIndex)
	assert.True(t, s.State.IsPlaying)
}

func TestPlayer_Seek(t *testing.T) {
	env := newDefaultEnv(t)
	c := env.client()

	// Nothing loaded: ignored
	s := env.command(c, "seek", map[string]any{"seconds": 30})
	assert.Equal(t, 0, s.Panel.Progress)

	env.command(c, "play", map[string]any{"episode_id": "c"})
	require.Eventually(t, func() bool {
		return env.command(c, "seek", map[string]any{"seconds": 30.9}).Panel.Progress == 30
	}, 2*time.Second, 20*time.Millisecond)

	// Clamped to the episode duration
	require.Eventually(t, func() bool {
		return env.command(c, "seek", map[string]any{"seconds": 500}).Panel.Progress == 65
	}, 2*time.Second, 20*time.Millisecond)
}

func TestPlayer_SessionsAreIsolated(t *testing.T) {
	env := newDefaultEnv(t)
	alice, bob := env.client(), env.client()

	env.command(alice, "play", map[string]any{"episode_id": "a"})

	assert.Equal(t, 0, env.state(alice).State.CurrentIndex)
	assert.Equal(t, -1, env.state(bob).State.CurrentIndex)
	assert.Equal(t, 2, env.registry.Count())
}

func TestPlayer_PanelFragment(t *testing.T) {
	env := newDefaultEnv(t)
	c := env.client()

	status, body := env.get(c, "/player")
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, "Selecione um podcast para ouvir")
	assert.NotContains(t, body, "<html")

	env.command(c, "play", map[string]any{"episode_id": "b"})
	_, body = env.get(c, "/player")
	assert.Contains(t, body, "Como virar ninja")
	assert.Contains(t, body, "Pausar")
}

func TestPlayer_RateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.Server.RateLimit = config.RateLimitConfig{RequestsPerMin: 2}
	env := newTestEnv(t, cfg, &fakeSource{episodes: testEpisodes()})
	c := env.client()

	status, _ := env.post(c, "next", nil)
	assert.Equal(t, http.StatusOK, status)
	status, _ = env.post(c, "next", nil)
	assert.Equal(t, http.StatusOK, status)

	status, body := env.post(c, "next", nil)
	assert.Equal(t, http.StatusTooManyRequests, status)
	assert.Contains(t, string(body), "rate_limit_exceeded")

	// Reads are not limited
	status, _ = env.get(c, "/player/state")
	assert.Equal(t, http.StatusOK, status)
}

type sseEvent struct {
	name string
	data string
}

func readEvent(t *testing.T, r *bufio.Reader) sseEvent {
	t.Helper()
	var ev sseEvent
	for {
		line, err := r.ReadString('\n')
		require.NoError(t, err)
		line = strings.TrimRight(line, "\n")
		switch {
		case line == "":
			if ev.name != "" {
				return ev
			}
		case strings.HasPrefix(line, "event: "):
			ev.name = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			ev.data = strings.TrimPrefix(line, "data: ")
		}
	}
}

func TestEvents_StreamsStateAndCommands(t *testing.T) {
	env := newDefaultEnv(t)
	c := env.client()
	env.state(c) // establish the session cookie

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, env.ts.URL+"/player/events", nil)
	require.NoError(t, err)
	resp, err := c.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))
	reader := bufio.NewReader(resp.Body)

	first := readEvent(t, reader)
	assert.Equal(t, "initial_state", first.name)
	assert.Contains(t, first.data, `"empty":true`)

	env.command(c, "play", map[string]any{"episode_id": "a"})

	var sawState, sawPlay bool
	for i := 0; i < 4 && !(sawState && sawPlay); i++ {
		ev := readEvent(t, reader)
		switch ev.name {
		case "state":
			if strings.Contains(ev.data, `"event":"episode_changed"`) {
				sawState = true
			}
		case "command":
			if strings.Contains(ev.data, `"command":"play"`) {
				sawPlay = true
			}
		}
	}
	assert.True(t, sawState, "expected an episode_changed state event")
	assert.True(t, sawPlay, "expected a play command")
}

func TestEventStream_SendNeverBlocks(t *testing.T) {
	stream := newEventStream(1)

	require.NoError(t, stream.Send(&notification.Notification{}))
	assert.ErrorIs(t, stream.Send(&notification.Notification{}), errStreamFull)

	stream.close()
	stream.close()
	assert.ErrorIs(t, stream.Send(&notification.Notification{}), errStreamClosed)
}

func TestHealthAndMetrics(t *testing.T) {
	env := newDefaultEnv(t)
	c := env.client()

	status, body := env.get(c, "/health")
	assert.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"status":"ok","sessions":0}`, body)

	env.get(c, "/")
	status, body = env.get(c, "/metrics")
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, "podcastr_http_request_duration_seconds")
	assert.Contains(t, body, `route="/"`)
}

func TestStatic(t *testing.T) {
	env := newDefaultEnv(t)

	status, body := env.get(env.client(), "/static/player.js")
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, "EventSource")
}

func TestRecoverer(t *testing.T) {
	h := recoverer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		playback.MustFromContext(r.Context())
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/player/state", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "internal_error")
}
