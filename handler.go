package sheetgrid

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/gnemet/sheetgrid/session"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// SessionCookie carries the id of the browser's Table controller.
const SessionCookie = "sheetgrid_session"

type page struct {
	table *Table
	body  *Buffer
}

// Handler serves the table page and its interactions. Each page load gets
// its own controller; interactions return the new body markup.
type Handler struct {
	Config *Config
	Source Source

	sessions *session.Pool[*page]
	router   chi.Router
}

// NewHandler validates cfg and wires the routes.
func NewHandler(cfg *Config, src Source) (*Handler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	idle, abs := cfg.Session.Timeouts()
	h := &Handler{
		Config:   cfg,
		Source:   src,
		sessions: session.NewPool[*page](cfg.Session.MaxSessions, idle, abs,
			session.WithEvict(func(id string, p *page) {
				slog.Info("Session closed", "session", id, "renders", p.body.Renders())
			}),
		),
	}
	h.router = h.routes()
	return h, nil
}

// Close stops the session pool.
func (h *Handler) Close() {
	h.sessions.Close()
}

func (h *Handler) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Handle("/static/*", http.StripPrefix("/static/", StaticHandler()))
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "ok")
	})

	r.Get("/", h.index)
	r.Get("/export.xlsx", h.export)
	r.Post("/sort/{column}", h.interact(func(t *Table, r *http.Request) error {
		return t.Sort(columnParam(r))
	}))
	r.Post("/filter/{column}", h.interact(func(t *Table, r *http.Request) error {
		var anchor Anchor
		if a := ParseAnchor(r); a != nil {
			anchor = *a
		}
		return t.ToggleFilter(columnParam(r), anchor)
	}))
	r.Post("/filter/{column}/options", h.interact(func(t *Table, r *http.Request) error {
		anchor := ParseAnchor(r)
		return t.SetFilter(columnParam(r), r.PostForm["value"], anchor)
	}))
	r.Post("/filter/{column}/batch", h.interact(func(t *Table, r *http.Request) error {
		anchor := ParseAnchor(r)
		return t.Batch(columnParam(r), r.PostForm.Get("mode"), anchor)
	}))
	r.Post("/dismiss", h.interact(func(t *Table, r *http.Request) error {
		return t.Dismiss()
	}))
	r.Post("/scroll", h.interact(func(t *Table, r *http.Request) error {
		if a := ParseAnchor(r); a != nil {
			return t.Reposition(*a)
		}
		return nil
	}))
	return r
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

func (h *Handler) index(w http.ResponseWriter, r *http.Request) {
	buf := &Buffer{}
	table, err := NewTable(h.Config, h.Source, buf)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	// a reload replaces the browser's previous controller
	if c, err := r.Cookie(SessionCookie); err == nil {
		h.sessions.Remove(c.Value)
	}
	id := h.sessions.Add(&page{table: table, body: buf})
	slog.Info("Session started", "session", id)

	// a failed load is rendered as an error message on the page
	_ = table.Load(r.Context())

	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	title := h.Config.Application.Name
	if title == "" {
		title = "sheetgrid"
	}
	var out bytes.Buffer
	if err := templates.ExecuteTemplate(&out, "index.html", pageView{Title: title, Body: buf.Body()}); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	out.WriteTo(w)
}

func (h *Handler) lookup(r *http.Request) (*page, bool) {
	c, err := r.Cookie(SessionCookie)
	if err != nil {
		return nil, false
	}
	return h.sessions.Get(c.Value)
}

// interact adapts a controller action into a handler that answers with
// the re-rendered body.
func (h *Handler) interact(action func(t *Table, r *http.Request) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := h.lookup(r)
		if !ok {
			http.Error(w, "session expired, reload the page", http.StatusGone)
			return
		}
		if err := r.ParseForm(); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if err := action(p.table, r); err != nil {
			writeError(w, r, err)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, p.body.Body())
	}
}

func (h *Handler) export(w http.ResponseWriter, r *http.Request) {
	p, ok := h.lookup(r)
	if !ok {
		http.Error(w, "session expired, reload the page", http.StatusGone)
		return
	}
	var out bytes.Buffer
	if err := p.table.ExportXLSX(&out); err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="table.xlsx"`)
	out.WriteTo(w)
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, ErrUnknownColumn):
		status = http.StatusNotFound
	case errors.Is(err, ErrNotSortable), errors.Is(err, ErrNotFilterable), errors.Is(err, ErrBatchMode):
		status = http.StatusBadRequest
	case errors.Is(err, ErrNotReady):
		status = http.StatusConflict
	}
	if status == http.StatusInternalServerError {
		slog.Error("Interaction failed", "path", r.URL.Path, "error", err)
	}
	http.Error(w, err.Error(), status)
}

func columnParam(r *http.Request) string {
	raw := chi.URLParam(r, "column")
	if key, err := url.PathUnescape(raw); err == nil {
		return key
	}
	return raw
}

// ParseAnchor reads header geometry from the request form. It returns
// nil when the form carries none.
func ParseAnchor(r *http.Request) *Anchor {
	if err := r.ParseForm(); err != nil {
		return nil
	}
	f := r.Form
	if f.Get("width") == "" && f.Get("height") == "" {
		return nil
	}
	num := func(key string) float64 {
		var v float64
		if s := f.Get(key); s != "" {
			fmt.Sscanf(s, "%g", &v)
		}
		return v
	}
	return &Anchor{
		Rect: Rect{
			Left:   num("left"),
			Top:    num("top"),
			Width:  num("width"),
			Height: num("height"),
		},
		Scroll: Scroll{X: num("scroll_x"), Y: num("scroll_y")},
	}
}
