package web

import (
	"encoding/json"
	"html/template"
	"net/http"

	"github.com/cockroachdb/errors"
	"github.com/go-chi/chi/v5"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/podcastr/internal/app/format"
	"github.com/osa030/podcastr/internal/app/panel"
	"github.com/osa030/podcastr/internal/domain/episode"
	"github.com/osa030/podcastr/internal/domain/playlist"
	"github.com/osa030/podcastr/internal/infra/episodeapi"
)

// layoutData is shared by every page.
type layoutData struct {
	Title     string
	SiteTitle string
	Tagline   string
	Today     string
	Lang      string
	Panel     panel.View
}

// episodeView is an episode prepared for display.
type episodeView struct {
	Index       int
	ID          string
	Title       string
	Members     string
	Thumbnail   string
	PublishedAt string
	Duration    string
	Description template.HTML
}

type homeData struct {
	layoutData
	Latest        []episodeView
	All           []episodeView
	EpisodeIDs    string // JSON array handed to play-list
	TotalDuration string // listening time of the whole list
}

type episodeData struct {
	layoutData
	Episode episodeView
}

type errorData struct {
	layoutData
	Status  int
	Message string
}

func (s *Server) layout(r *http.Request, title string) layoutData {
	d := layoutData{
		Title:     title,
		SiteTitle: s.cfg.Site.Title,
		Tagline:   s.cfg.Site.Tagline,
		Today:     format.Today(s.now(), s.locale),
		Lang:      s.locale.Tag.String(),
		Panel:     panel.View{Empty: true},
	}
	if sess := sessionFromContext(r.Context()); sess != nil {
		d.Panel = sess.Panel().View()
	}
	if d.Title == "" {
		d.Title = s.cfg.Site.Title
	}
	return d
}

func (s *Server) newEpisodeView(ep episode.Episode, index int) episodeView {
	v := episodeView{
		Index:     index,
		ID:        ep.ID,
		Title:     ep.Title,
		Members:   ep.Members,
		Thumbnail: ep.Thumbnail,
		Duration:  format.ClockLong(ep.Duration),
	}
	// The API serves trusted HTML descriptions.
	v.Description = template.HTML(ep.Description)
	if !ep.PublishedAt.IsZero() {
		v.PublishedAt = format.Date(ep.PublishedAt, format.EpisodeDateLayout, s.locale)
	}
	return v
}

// handleHome renders the latest episodes as cards and the rest as a table.
// Every play button plays the whole list from its position.
func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	episodes, err := s.episodes.ListEpisodes(r.Context(), episodeapi.LatestFirst(s.cfg.API.ListLimit))
	if err != nil {
		s.renderError(w, r, errors.Wrap(err, "failed to list episodes"))
		return
	}

	latestCount := min(s.cfg.API.LatestCount, len(episodes))
	data := homeData{
		layoutData: s.layout(r, s.cfg.Site.Title+" | Home"),
		Latest:     make([]episodeView, 0, latestCount),
		All:        make([]episodeView, 0, len(episodes)-latestCount),
	}
	for i, ep := range episodes {
		v := s.newEpisodeView(ep, i)
		if i < latestCount {
			data.Latest = append(data.Latest, v)
		} else {
			data.All = append(data.All, v)
		}
	}

	// the page plays the list it shows, from the clicked position
	list := playlist.New(episodes)
	ids, err := json.Marshal(list.EpisodeIDs())
	if err != nil {
		s.renderError(w, r, errors.Wrap(err, "failed to encode episode ids"))
		return
	}
	data.EpisodeIDs = string(ids)
	data.TotalDuration = format.ClockLong(int(list.TotalDuration()))

	s.pages.render(w, http.StatusOK, "home", data)
}

// handleEpisode renders the detail page of one episode.
func (s *Server) handleEpisode(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	ep, err := s.episodes.GetEpisode(r.Context(), id)
	if err != nil {
		s.renderError(w, r, errors.Wrapf(err, "failed to get episode %s", id))
		return
	}

	s.pages.render(w, http.StatusOK, "episode", episodeData{
		layoutData: s.layout(r, ep.Title+" | "+s.cfg.Site.Title),
		Episode:    s.newEpisodeView(ep, 0),
	})
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	s.renderStatus(w, r, http.StatusNotFound, "Página não encontrada")
}

// renderError maps a fetch failure to the error page: 404 when the API has
// no such episode, 500 otherwise.
func (s *Server) renderError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, episodeapi.ErrNotFound) {
		s.renderStatus(w, r, http.StatusNotFound, "Episódio não encontrado")
		return
	}
	zlog.Error().Err(err).Str("path", r.URL.Path).Msg("web: page generation failed")
	s.renderStatus(w, r, http.StatusInternalServerError, "Não foi possível carregar os episódios")
}

func (s *Server) renderStatus(w http.ResponseWriter, r *http.Request, status int, message string) {
	s.pages.render(w, status, "error", errorData{
		layoutData: s.layout(r, ""),
		Status:     status,
		Message:    message,
	})
}
