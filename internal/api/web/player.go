package web

import (
	"context"
	"encoding/json"
	"io"
	"math"
	"net/http"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-chi/chi/v5"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/podcastr/internal/app/panel"
	"github.com/osa030/podcastr/internal/app/playback"
	"github.com/osa030/podcastr/internal/domain/episode"
	"github.com/osa030/podcastr/internal/infra/episodeapi"
)

const maxBodyBytes = 64 << 10

// maxPlaylistLen is also the max= tag on playListRequest.EpisodeIDs.
const maxPlaylistLen = 200

type playRequest struct {
	EpisodeID string `json:"episode_id" validate:"required"`
}

type playListRequest struct {
	EpisodeIDs []string `json:"episode_ids" validate:"required,min=1,max=200,dive,required"`
	Index      int      `json:"index" default:"0" validate:"gte=0"`
}

type seekRequest struct {
	Seconds float64 `json:"seconds" validate:"gte=0"`
}

type mediaRequest struct {
	CurrentTime float64 `json:"current_time" validate:"gte=0"`
}

// stateResponse is returned by every player command.
type stateResponse struct {
	State playback.State `json:"state"`
	Panel panel.View     `json:"panel"`
}

func (s *Server) handlePanel(w http.ResponseWriter, r *http.Request) {
	s.pages.renderPanel(w, sessionFromContext(r.Context()).Panel().View())
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	s.writeState(w, r)
}

func (s *Server) handlePlay(w http.ResponseWriter, r *http.Request) {
	var req playRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	ep, err := s.episodes.GetEpisode(r.Context(), req.EpisodeID)
	if err != nil {
		s.writeFetchError(w, err)
		return
	}
	if !ep.IsPlayable() {
		writeNotPlayable(w, ep)
		return
	}

	playback.MustFromContext(r.Context()).Play(ep)
	s.writeState(w, r)
}

func (s *Server) handlePlayList(w http.ResponseWriter, r *http.Request) {
	var req playListRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	// checked before resolving so a bad index costs no upstream requests
	if req.Index >= len(req.EpisodeIDs) {
		writeJSONError(w, http.StatusBadRequest, "invalid_index",
			errors.Wrapf(playback.ErrIndexOutOfRange, "index %d, playlist length %d", req.Index, len(req.EpisodeIDs)).Error())
		return
	}

	episodes, err := s.resolveEpisodes(r.Context(), req.EpisodeIDs)
	if err != nil {
		s.writeFetchError(w, err)
		return
	}
	for _, ep := range episodes {
		if !ep.IsPlayable() {
			writeNotPlayable(w, ep)
			return
		}
	}

	if err := playback.MustFromContext(r.Context()).PlayList(episodes, req.Index); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_index", err.Error())
		return
	}
	s.writeState(w, r)
}

func (s *Server) handleToggle(w http.ResponseWriter, r *http.Request) {
	player := playback.MustFromContext(r.Context())

	switch chi.URLParam(r, "flag") {
	case "play":
		player.TogglePlay()
	case "loop":
		player.ToggleLoop()
	case "shuffle":
		player.ToggleShuffle()
	default:
		writeJSONError(w, http.StatusNotFound, "unknown_flag", "flag must be play, loop or shuffle")
		return
	}
	s.writeState(w, r)
}

func (s *Server) handleNext(w http.ResponseWriter, r *http.Request) {
	playback.MustFromContext(r.Context()).PlayNext()
	s.writeState(w, r)
}

func (s *Server) handlePrevious(w http.ResponseWriter, r *http.Request) {
	playback.MustFromContext(r.Context()).PlayPrevious()
	s.writeState(w, r)
}

// handleSeek is a no-op while nothing is loaded.
func (s *Server) handleSeek(w http.ResponseWriter, r *http.Request) {
	var req seekRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	sess := sessionFromContext(r.Context())
	if _, ok := sess.Player().CurrentEpisode(); ok {
		sess.Panel().Seek(int(math.Floor(req.Seconds)))
	}
	s.writeState(w, r)
}

// handleMediaEvent receives events reported by the visitor's audio element.
func (s *Server) handleMediaEvent(w http.ResponseWriter, r *http.Request) {
	ev, ok := panel.ParseMediaEvent(chi.URLParam(r, "event"))
	if !ok {
		writeJSONError(w, http.StatusNotFound, "unknown_event", "unknown media event")
		return
	}

	var req mediaRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	sessionFromContext(r.Context()).Panel().HandleMediaEvent(ev, req.CurrentTime)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) writeState(w http.ResponseWriter, r *http.Request) {
	sess := sessionFromContext(r.Context())
	writeJSON(w, http.StatusOK, stateResponse{
		State: sess.Player().Snapshot(),
		Panel: sess.Panel().View(),
	})
}

// decodeBody fills v from the JSON body, applying defaults first and
// validating last. An empty body is accepted. It writes a 400 and returns
// false when the body is invalid.
func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := defaults.Set(v); err != nil {
		zlog.Error().Err(err).Msg("web: failed to apply request defaults")
		writeJSONError(w, http.StatusInternalServerError, "internal_error", "internal server error")
		return false
	}

	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		writeJSONError(w, http.StatusBadRequest, "invalid_body", err.Error())
		return false
	}

	if err := s.validate.Struct(v); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return false
	}
	return true
}

func (s *Server) writeFetchError(w http.ResponseWriter, err error) {
	if errors.Is(err, episodeapi.ErrNotFound) {
		writeJSONError(w, http.StatusNotFound, "episode_not_found", err.Error())
		return
	}
	zlog.Error().Err(err).Msg("web: failed to fetch episodes")
	writeJSONError(w, http.StatusBadGateway, "api_unavailable", "failed to fetch episodes")
}

// resolveEpisodes looks the IDs up in the cached episode list and fetches
// any that are not in it. Order follows ids.
func writeNotPlayable(w http.ResponseWriter, ep episode.Episode) {
	writeJSONError(w, http.StatusBadRequest, "not_playable", "episode "+ep.ID+" has no media file")
}

func (s *Server) resolveEpisodes(ctx context.Context, ids []string) ([]episode.Episode, error) {
	listed, err := s.episodes.ListEpisodes(ctx, episodeapi.LatestFirst(s.cfg.API.ListLimit))
	if err != nil {
		return nil, errors.Wrap(err, "failed to list episodes")
	}

	episodes := make([]episode.Episode, 0, len(ids))
	for _, id := range ids {
		if ep, i := episode.Find(listed, id); i >= 0 {
			episodes = append(episodes, ep)
			continue
		}
		ep, err := s.episodes.GetEpisode(ctx, id)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to get episode %s", id)
		}
		episodes = append(episodes, ep)
	}
	return episodes, nil
}
