package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/example/fare-finder/internal/dispatch"
	"github.com/example/fare-finder/internal/form"
	"github.com/example/fare-finder/internal/models"
	"github.com/example/fare-finder/internal/observability"
	"github.com/example/fare-finder/internal/session"
	"github.com/example/fare-finder/internal/storage"
	"github.com/example/fare-finder/internal/submission"
	"github.com/example/fare-finder/internal/view"
)

const sessionCookie = "fare_session"

// OutcomePublisher ships resolved attempts to a stream. Optional.
type OutcomePublisher interface {
	PublishOutcome(ctx context.Context, o models.Outcome) error
}

type Deps struct {
	Predictor      submission.Predictor
	PredictTimeout time.Duration
	SessionTTL     time.Duration
	Store          storage.OutcomeStore
	Publisher      OutcomePublisher
	Logger         *slog.Logger
	RecentLimit    int
}

type Server struct {
	Sessions  *session.Registry
	WSReg     *dispatch.WSRegistry
	Store     storage.OutcomeStore
	Publisher OutcomePublisher

	renderer    *view.Renderer
	logger      *slog.Logger
	recentLimit int
	mux         *mux.Router
}

func NewServer(d Deps) (*Server, error) {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Store == nil {
		d.Store = storage.NewMemoryStore(d.RecentLimit)
	}
	if d.RecentLimit <= 0 {
		d.RecentLimit = 1000
	}
	renderer, err := view.NewRenderer()
	if err != nil {
		return nil, err
	}
	wsreg := dispatch.NewWSRegistry(d.Logger)
	sessions := session.NewRegistry(session.Config{
		Predictor: d.Predictor,
		Timeout:   d.PredictTimeout,
		TTL:       d.SessionTTL,
		Logger:    d.Logger,
		OnMount: func(c *session.Component) {
			id := c.ID
			c.Watch(func(s submission.State) { wsreg.Broadcast(id, view.Project(s)) })
		},
	})
	s := &Server{
		Sessions:    sessions,
		WSReg:       wsreg,
		Store:       d.Store,
		Publisher:   d.Publisher,
		renderer:    renderer,
		logger:      d.Logger,
		recentLimit: d.RecentLimit,
		mux:         mux.NewRouter(),
	}
	s.routes()
	s.registerMiddleware()
	return s, nil
}

func (s *Server) routes() {
	s.mux.HandleFunc("/", s.handlePage).Methods("GET")
	s.mux.HandleFunc("/form/fields/{name}", s.handleFieldChange).Methods("POST")
	s.mux.HandleFunc("/form/submit", s.handleSubmit).Methods("POST")
	s.mux.HandleFunc("/api/form", s.handleFormState).Methods("GET")
	s.mux.HandleFunc("/api/predictions/recent", s.handleRecent).Methods("GET")
	s.mux.HandleFunc("/ws", s.handleWS)
	s.mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); w.Write([]byte("ok")) }).Methods("GET")
	s.mux.Handle("/metrics", promhttp.Handler())
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.mux.ServeHTTP(w, r) }

// component returns the caller's form, mounting one and setting the cookie when needed.
func (s *Server) component(w http.ResponseWriter, r *http.Request) *session.Component {
	var id string
	if ck, err := r.Cookie(sessionCookie); err == nil {
		id = ck.Value
	}
	c := s.Sessions.Mount(id)
	if c.ID != id {
		http.SetCookie(w, &http.Cookie{
			Name:     sessionCookie,
			Value:    c.ID,
			Path:     "/",
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})
	}
	return c
}

func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	c := s.component(w, r)
	page := view.NewPage(c.Fields(), view.Project(c.State()))
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.renderer.Render(w, page); err != nil {
		s.logger.Error("render page", "error", err, "session_id", c.ID)
	}
}

func (s *Server) handleFieldChange(w http.ResponseWriter, r *http.Request) {
	c := s.component(w, r)
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), 400)
		return
	}
	name := mux.Vars(r)["name"]
	if err := c.Change(name, r.PostFormValue("value")); err != nil {
		if errors.Is(err, form.ErrUnknownField) {
			http.Error(w, "unknown field "+strconv.Quote(name), 400)
			return
		}
		http.Error(w, err.Error(), 500)
		return
	}
	w.WriteHeader(204)
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	c := s.component(w, r)
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), 400)
		return
	}
	// a plain form post carries every control; apply them as change events first
	for _, f := range form.AllFields() {
		if vals, ok := r.PostForm[f.String()]; ok && len(vals) > 0 {
			_ = c.Change(f.String(), vals[0])
		}
	}

	attempt := c.Submit(r.Context())
	if !attempt.Superseded {
		s.record(c.ID, attempt)
	}

	if wantsJSON(r) {
		writeJSON(w, view.Project(c.State()))
		return
	}
	http.Redirect(w, r, "/#predict", http.StatusSeeOther)
}

type formState struct {
	Fields form.Fields `json:"fields"`
	View   view.View   `json:"view"`
}

func (s *Server) handleFormState(w http.ResponseWriter, r *http.Request) {
	c := s.component(w, r)
	writeJSON(w, formState{Fields: c.Fields(), View: view.Project(c.State())})
}

func (s *Server) handleRecent(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			http.Error(w, "limit must be a positive integer", 400)
			return
		}
		limit = n
	}
	if limit > s.recentLimit {
		limit = s.recentLimit
	}
	out, err := s.Store.RecentOutcomes(r.Context(), limit)
	if err != nil {
		s.logger.Error("list outcomes", "error", err)
		http.Error(w, "outcome store unavailable", 503)
		return
	}
	if out == nil {
		out = []models.Outcome{}
	}
	writeJSON(w, out)
}

var upgrader = websocket.Upgrader{}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	var id string
	if ck, err := r.Cookie(sessionCookie); err == nil {
		id = ck.Value
	}
	c, ok := s.Sessions.Get(id)
	if !ok {
		http.Error(w, "no form session", 400)
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied
		return
	}
	ws := s.WSReg.Add(c.ID, conn)
	defer s.WSReg.Remove(c.ID, ws)

	if err := ws.Send(view.Project(c.State())); err != nil {
		return
	}
	// the browser never sends anything; reading only detects the close
	for {
		if _, _, err := conn.NextReader(); err != nil {
			return
		}
	}
}

// record stores and publishes an outcome. Failures are logged and never reach the form.
func (s *Server) record(sessionID string, a submission.Attempt) {
	o := models.Outcome{
		ID:         a.ID,
		SessionID:  sessionID,
		Request:    a.Fields,
		Phase:      a.State.Phase.String(),
		DurationMs: a.Duration.Milliseconds(),
		CreatedAt:  a.Started.UTC(),
	}
	if a.Err == nil {
		fare := a.Fare
		o.Fare = &fare
		o.Message = a.State.Result
	} else {
		o.Message = a.State.Error
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := s.Store.SaveOutcome(ctx, o); err != nil {
		observability.OutcomeSinkErrors.WithLabelValues("store").Inc()
		s.logger.Warn("save outcome", "error", err, "attempt_id", o.ID)
	}
	if s.Publisher != nil {
		if err := s.Publisher.PublishOutcome(ctx, o); err != nil {
			observability.OutcomeSinkErrors.WithLabelValues("publish").Inc()
			s.logger.Warn("publish outcome", "error", err, "attempt_id", o.ID)
		}
	}
}

func wantsJSON(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "application/json")
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
