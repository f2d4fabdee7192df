package web

import (
	"bytes"
	"encoding/json"
	"html/template"
	"io/fs"
	"net/http"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/podcastr/internal/app/format"
	"github.com/osa030/podcastr/internal/app/panel"
)

var pageNames = []string{"home", "episode", "error"}

// pageSet holds one template tree per page, each sharing the layout and the
// player panel.
type pageSet struct {
	base  *template.Template
	pages map[string]*template.Template
}

func parsePages(fsys fs.FS) (*pageSet, error) {
	funcs := template.FuncMap{
		"clock":     format.Clock,
		"clockLong": format.ClockLong,
	}

	base, err := template.New("").Funcs(funcs).ParseFS(fsys, "templates/layout.html", "templates/panel.html")
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse layout templates")
	}

	set := &pageSet{base: base, pages: make(map[string]*template.Template, len(pageNames))}
	for _, name := range pageNames {
		t, err := base.Clone()
		if err != nil {
			return nil, errors.Wrapf(err, "failed to clone layout for %s", name)
		}
		if _, err := t.ParseFS(fsys, "templates/"+name+".html"); err != nil {
			return nil, errors.Wrapf(err, "failed to parse %s template", name)
		}
		set.pages[name] = t
	}
	return set, nil
}

func (p *pageSet) render(w http.ResponseWriter, status int, name string, data any) {
	t, ok := p.pages[name]
	if !ok {
		zlog.Error().Msgf("web: unknown page template %s", name)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	p.execute(w, status, t, "layout", data)
}

func (p *pageSet) renderPanel(w http.ResponseWriter, view panel.View) {
	p.execute(w, http.StatusOK, p.base, "panel", view)
}

// execute renders into a buffer first so a template error never leaves a
// half-written page behind.
func (p *pageSet) execute(w http.ResponseWriter, status int, t *template.Template, name string, data any) {
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, name, data); err != nil {
		zlog.Error().Err(err).Msgf("web: failed to render %s", name)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

type errorBody struct {
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zlog.Debug().Msgf("web: failed to write response: %v", err)
	}
}

func writeJSONError(w http.ResponseWriter, status int, code, detail string) {
	writeJSON(w, status, errorBody{Error: code, Detail: detail})
}
