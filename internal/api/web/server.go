// Package web serves the podcast pages and the per-visitor player surface.
package web

import (
	"context"
	"embed"
	"io/fs"
	"net/http"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"

	"github.com/osa030/podcastr/internal/app/format"
	"github.com/osa030/podcastr/internal/app/session"
	"github.com/osa030/podcastr/internal/domain/episode"
	"github.com/osa030/podcastr/internal/infra/config"
	"github.com/osa030/podcastr/internal/infra/episodeapi"
	"github.com/osa030/podcastr/internal/infra/metrics"
)

//go:embed templates/*.html
var templatesFS embed.FS

//go:embed static
var staticFS embed.FS

// EpisodeSource provides episodes to the pages and the player.
type EpisodeSource interface {
	ListEpisodes(ctx context.Context, opts episodeapi.ListOptions) ([]episode.Episode, error)
	GetEpisode(ctx context.Context, id string) (episode.Episode, error)
}

// Options holds the server dependencies.
type Options struct {
	Config   *config.Config
	Episodes EpisodeSource
	Sessions *session.Registry
}

// Server renders pages and handles player requests.
type Server struct {
	cfg      *config.Config
	episodes EpisodeSource
	sessions *session.Registry
	pages    *pageSet
	locale   format.Locale
	validate *validator.Validate
	now      func() time.Time
}

// NewServer creates a new web server.
func NewServer(opts Options) (*Server, error) {
	if opts.Config == nil {
		return nil, errors.New("config is required")
	}
	if opts.Episodes == nil {
		return nil, errors.New("episode source is required")
	}
	if opts.Sessions == nil {
		return nil, errors.New("session registry is required")
	}

	pages, err := parsePages(templatesFS)
	if err != nil {
		return nil, err
	}

	return &Server{
		cfg:      opts.Config,
		episodes: opts.Episodes,
		sessions: opts.Sessions,
		pages:    pages,
		locale:   format.LookupLocale(opts.Config.Site.Locale),
		validate: validator.New(),
		now:      time.Now,
	}, nil
}

// Handler builds the HTTP handler with the full middleware stack.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(recoverer)
	r.Use(observe)

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", metrics.Handler())

	static, _ := fs.Sub(staticFS, "static")
	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(static))))

	r.Group(func(r chi.Router) {
		r.Use(s.withSession)

		r.Get("/", s.handleHome)
		r.Get("/episodes/{id}", s.handleEpisode)

		r.Route("/player", func(r chi.Router) {
			r.Get("/", s.handlePanel)
			r.Get("/state", s.handleState)
			r.Get("/events", s.handleEvents)

			r.Group(func(r chi.Router) {
				if !s.cfg.Server.RateLimit.Disabled {
					r.Use(rateLimit(s.cfg.Server.RateLimit.RequestsPerMin, time.Minute))
				}
				r.Post("/play", s.handlePlay)
				r.Post("/play-list", s.handlePlayList)
				r.Post("/toggle/{flag}", s.handleToggle)
				r.Post("/next", s.handleNext)
				r.Post("/previous", s.handlePrevious)
				r.Post("/seek", s.handleSeek)
				r.Post("/media/{event}", s.handleMediaEvent)
			})
		})
	})

	r.NotFound(s.handleNotFound)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"sessions": s.sessions.Count(),
	})
}
