// Package api serves a read-mostly HTTP view of the engine.
package api

import (
	"encoding/json"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/MarkStefanovic/ketl-sub000/internal/task/job"
	"github.com/MarkStefanovic/ketl-sub000/internal/task/state"
	logx "github.com/MarkStefanovic/ketl-sub000/pkg/logx"
)

// Catalog is the scheduler's view of the configured jobs.
type Catalog interface {
	Jobs() []*job.Job
	Enabled(name string) bool
	LastQueued(name string) (time.Time, bool)
}

type Canceller interface {
	Cancel(name string) bool
}

type QueueView interface {
	Names() []string
}

type StatusView interface {
	Get(name string) (state.Status, bool)
	Records() []state.StatusRecord
}

type ResultView interface {
	History(name string) []state.Result
}

// Deps wires the router to the engine. Metrics and Health are optional.
type Deps struct {
	Catalog  Catalog
	Runner   Canceller
	Queue    QueueView
	Statuses StatusView
	Results  ResultView
	Metrics  http.Handler
	Health   func() error
}

type RouterOptions struct {
	Pprof bool
	Token string
	Log   logx.Logger
}

// NewRouter builds the handler tree.
func NewRouter(d Deps, opts RouterOptions) http.Handler {
	log := opts.Log
	if log.IsZero() {
		log = logx.Nop()
	}
	h := &handlers{d: d, log: log}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(log))

	r.Get("/healthz", h.health)

	r.Group(func(r chi.Router) {
		r.Use(bearerAuth(opts.Token))

		r.Route("/api", func(r chi.Router) {
			r.Get("/jobs", h.listJobs)
			r.Get("/jobs/{name}", h.getJob)
			r.Get("/jobs/{name}/results", h.jobResults)
			r.Post("/jobs/{name}/cancel", h.cancelJob)
			r.Get("/statuses", h.statuses)
			r.Get("/queue", h.queue)
		})
		if d.Metrics != nil {
			r.Handle("/metrics", d.Metrics)
		}
		if opts.Pprof {
			r.Mount("/debug", middleware.Profiler())
		}
	})
	return r
}

type handlers struct {
	d   Deps
	log logx.Logger
}

type partView struct {
	Frequency string    `json:"frequency"`
	Window    string    `json:"window"`
	Start     time.Time `json:"start"`
}

type scheduleView struct {
	Name  string     `json:"name"`
	Parts []partView `json:"parts"`
}

type jobView struct {
	Name         string              `json:"name"`
	Enabled      bool                `json:"enabled"`
	Timeout      string              `json:"timeout,omitempty"`
	Retries      int                 `json:"retries"`
	Dependencies []string            `json:"dependencies,omitempty"`
	Schedules    []scheduleView      `json:"schedules"`
	Status       *state.StatusRecord `json:"status,omitempty"`
	LastQueued   *time.Time          `json:"last_queued,omitempty"`
	LatestResult *state.ResultRecord `json:"latest_result,omitempty"`
}

func (h *handlers) health(w http.ResponseWriter, r *http.Request) {
	if h.d.Health != nil {
		if err := h.d.Health(); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy", "error": err.Error()})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handlers) listJobs(w http.ResponseWriter, r *http.Request) {
	jobs := h.d.Catalog.Jobs()
	sort.Slice(jobs, func(i, k int) bool { return jobs[i].Name() < jobs[k].Name() })
	out := make([]jobView, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, h.view(j))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *handlers) getJob(w http.ResponseWriter, r *http.Request) {
	j, ok := h.lookup(chi.URLParam(r, "name"))
	if !ok {
		writeError(w, http.StatusNotFound, "unknown job")
		return
	}
	writeJSON(w, http.StatusOK, h.view(j))
}

func (h *handlers) jobResults(w http.ResponseWriter, r *http.Request) {
	j, ok := h.lookup(chi.URLParam(r, "name"))
	if !ok {
		writeError(w, http.StatusNotFound, "unknown job")
		return
	}
	hist := h.d.Results.History(j.Name())
	out := make([]state.ResultRecord, 0, len(hist))
	for _, res := range hist {
		out = append(out, state.ResultRecordOf(res))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *handlers) cancelJob(w http.ResponseWriter, r *http.Request) {
	j, ok := h.lookup(chi.URLParam(r, "name"))
	if !ok {
		writeError(w, http.StatusNotFound, "unknown job")
		return
	}
	cancelled := h.d.Runner != nil && h.d.Runner.Cancel(j.Name())
	h.log.Info("cancel requested", logx.String("job", j.Name()), logx.Bool("cancelled", cancelled))
	writeJSON(w, http.StatusAccepted, map[string]any{"job": j.Name(), "cancelled": cancelled})
}

func (h *handlers) statuses(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.d.Statuses.Records())
}

func (h *handlers) queue(w http.ResponseWriter, r *http.Request) {
	names := h.d.Queue.Names()
	if names == nil {
		names = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"length": len(names), "jobs": names})
}

func (h *handlers) lookup(name string) (*job.Job, bool) {
	name = strings.TrimSpace(name)
	for _, j := range h.d.Catalog.Jobs() {
		if j.Name() == name {
			return j, true
		}
	}
	return nil, false
}

func (h *handlers) view(j *job.Job) jobView {
	v := jobView{
		Name:         j.Name(),
		Enabled:      h.d.Catalog.Enabled(j.Name()),
		Retries:      j.Retries(),
		Dependencies: j.Dependencies(),
	}
	if j.Timeout() > 0 {
		v.Timeout = j.Timeout().String()
	}
	for _, s := range j.Schedules() {
		sv := scheduleView{Name: s.Name()}
		for _, p := range s.Parts() {
			sv.Parts = append(sv.Parts, partView{
				Frequency: p.Frequency().String(),
				Window:    p.Window().String(),
				Start:     p.StartDateTime(),
			})
		}
		v.Schedules = append(v.Schedules, sv)
	}
	if st, ok := h.d.Statuses.Get(j.Name()); ok {
		rec := state.StatusRecordOf(st)
		v.Status = &rec
	}
	if ts, ok := h.d.Catalog.LastQueued(j.Name()); ok {
		v.LastQueued = &ts
	}
	if hist := h.d.Results.History(j.Name()); len(hist) > 0 {
		rec := state.ResultRecordOf(hist[len(hist)-1])
		v.LatestResult = &rec
	}
	return v
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

func requestLogger(log logx.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			log.Debug("http request",
				logx.String("method", r.Method),
				logx.String("path", r.URL.Path),
				logx.Int("status", ww.Status()),
				logx.Duration("took", time.Since(start)),
				logx.String("req_id", middleware.GetReqID(r.Context())),
			)
		})
	}
}

// bearerAuth accepts "Authorization: Bearer <token>" or ?token=<token>.
// An empty token disables the check.
func bearerAuth(token string) func(http.Handler) http.Handler {
	tok := strings.TrimSpace(token)
	return func(next http.Handler) http.Handler {
		if tok == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if got := r.URL.Query().Get("token"); got != "" {
				if got == tok {
					next.ServeHTTP(w, r)
					return
				}
				unauthorized(w)
				return
			}
			const p = "Bearer "
			if ah := r.Header.Get("Authorization"); strings.HasPrefix(ah, p) && strings.TrimSpace(strings.TrimPrefix(ah, p)) == tok {
				next.ServeHTTP(w, r)
				return
			}
			unauthorized(w)
		})
	}
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	writeError(w, http.StatusUnauthorized, "unauthorized")
}
