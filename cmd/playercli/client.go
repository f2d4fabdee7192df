package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/r3labs/sse/v2"
	"gopkg.in/cenkalti/backoff.v1"

	"github.com/osa030/podcastr/internal/app/notification"
	"github.com/osa030/podcastr/internal/app/panel"
	"github.com/osa030/podcastr/internal/app/playback"
)

// stateResponse mirrors the server's player command response.
type stateResponse struct {
	State playback.State `json:"state"`
	Panel panel.View     `json:"panel"`
}

type apiError struct {
	Error  string `json:"error"`
	Detail string `json:"detail"`
}

// playerClient talks to the player surface as one visitor. The session
// cookie is kept in a file so consecutive invocations share a player.
type playerClient struct {
	baseURL    string
	cookieName string
	cookieFile string
	httpClient *http.Client
	sessionID  string
}

func newPlayerClient(baseURL, cookieName, cookieFile string) *playerClient {
	c := &playerClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		cookieName: cookieName,
		cookieFile: cookieFile,
		httpClient: &http.Client{},
	}
	if cookieFile != "" {
		if data, err := os.ReadFile(cookieFile); err == nil {
			c.sessionID = strings.TrimSpace(string(data))
		}
	}
	return c
}

func (c *playerClient) newRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, errors.Wrap(err, "failed to encode request")
		}
		r = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, r)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create request")
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.sessionID != "" {
		req.AddCookie(&http.Cookie{Name: c.cookieName, Value: c.sessionID})
	}
	return req, nil
}

// remember stores a session cookie handed out by the server.
func (c *playerClient) remember(resp *http.Response) error {
	for _, ck := range resp.Cookies() {
		if ck.Name != c.cookieName || ck.Value == c.sessionID {
			continue
		}
		c.sessionID = ck.Value
		if c.cookieFile == "" {
			return nil
		}
		if err := os.WriteFile(c.cookieFile, []byte(ck.Value+"\n"), 0o600); err != nil {
			return errors.Wrapf(err, "failed to save session to %s", c.cookieFile)
		}
	}
	return nil
}

func (c *playerClient) do(ctx context.Context, method, path string, body any) (*stateResponse, error) {
	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "failed to send request")
	}
	defer resp.Body.Close()

	if err := c.remember(resp); err != nil {
		return nil, err
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read response body")
	}

	if resp.StatusCode != http.StatusOK {
		var e apiError
		if json.Unmarshal(data, &e) == nil && e.Error != "" {
			return nil, errors.Newf("%s (%d): %s", e.Error, resp.StatusCode, e.Detail)
		}
		return nil, errors.Newf("unexpected status %d", resp.StatusCode)
	}

	var state stateResponse
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, errors.Wrap(err, "failed to parse response")
	}
	return &state, nil
}

func (c *playerClient) Status(ctx context.Context) (*stateResponse, error) {
	return c.do(ctx, http.MethodGet, "/player/state", nil)
}

func (c *playerClient) Play(ctx context.Context, episodeID string) (*stateResponse, error) {
	return c.do(ctx, http.MethodPost, "/player/play", map[string]any{"episode_id": episodeID})
}

func (c *playerClient) PlayList(ctx context.Context, episodeIDs []string, index int) (*stateResponse, error) {
	return c.do(ctx, http.MethodPost, "/player/play-list", map[string]any{"episode_ids": episodeIDs, "index": index})
}

func (c *playerClient) Next(ctx context.Context) (*stateResponse, error) {
	return c.do(ctx, http.MethodPost, "/player/next", nil)
}

func (c *playerClient) Previous(ctx context.Context) (*stateResponse, error) {
	return c.do(ctx, http.MethodPost, "/player/previous", nil)
}

func (c *playerClient) Toggle(ctx context.Context, flag string) (*stateResponse, error) {
	return c.do(ctx, http.MethodPost, "/player/toggle/"+url.PathEscape(flag), nil)
}

func (c *playerClient) Seek(ctx context.Context, seconds float64) (*stateResponse, error) {
	return c.do(ctx, http.MethodPost, "/player/seek", map[string]any{"seconds": seconds})
}

// Watch reads the event stream and calls fn for every notification until
// ctx is done or the server closes the stream. The stream is not reopened.
func (c *playerClient) Watch(ctx context.Context, fn func(*notification.Notification)) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	stream := sse.NewClient(c.baseURL+"/player/events", sse.ClientMaxBufferSize(1<<20))
	// The stream stays open; only the wait for headers is bounded.
	stream.Connection = &http.Client{Transport: &http.Transport{ResponseHeaderTimeout: 10 * time.Second}}
	stream.ReconnectStrategy = &backoff.StopBackOff{}
	if c.sessionID != "" {
		stream.Headers["Cookie"] = (&http.Cookie{Name: c.cookieName, Value: c.sessionID}).String()
	}
	stream.ResponseValidator = func(_ *sse.Client, resp *http.Response) error {
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return errors.Newf("unexpected status %d", resp.StatusCode)
		}
		if err := c.remember(resp); err != nil {
			resp.Body.Close()
			return err
		}
		return nil
	}

	var decodeErr error
	err := stream.SubscribeRawWithContext(ctx, func(msg *sse.Event) {
		if decodeErr != nil || len(msg.Data) == 0 {
			return
		}
		n, err := decodeNotification(msg)
		if err != nil {
			decodeErr = err
			cancel()
			return
		}
		fn(n)
	})

	switch {
	case decodeErr != nil:
		return decodeErr
	case err != nil && ctx.Err() == nil:
		return errors.Wrap(err, "event stream failed")
	default:
		return nil
	}
}

// decodeNotification reads the JSON payload of one event. The event name and
// id fill in the type and sequence number when the payload omits them.
func decodeNotification(msg *sse.Event) (*notification.Notification, error) {
	var n notification.Notification
	if err := json.Unmarshal(msg.Data, &n); err != nil {
		return nil, errors.Wrapf(err, "failed to parse %q notification", msg.Event)
	}
	if n.Type == "" {
		n.Type = notification.Type(msg.Event)
	}
	if n.SequenceNo == 0 && len(msg.ID) > 0 {
		if seq, err := strconv.ParseUint(string(msg.ID), 10, 64); err == nil {
			n.SequenceNo = seq
		}
	}
	return &n, nil
}
