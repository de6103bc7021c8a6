// Package schedule exposes the accepted operating-room schedule and the
// intra-day events that change it over HTTP.
package schedule

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/kilianp07/orplan/core/history"
	"github.com/kilianp07/orplan/core/model"
	"github.com/kilianp07/orplan/core/replan"
	"github.com/kilianp07/orplan/core/report"
	"github.com/kilianp07/orplan/core/scheduler"
)

// Planner is the subset of the re-planner served over HTTP.
type Planner interface {
	Topology() model.Topology
	Schedule() model.Schedule
	Cases() []model.Case
	DelayStart(ctx context.Context, id string, added int, now model.Minute) (model.Schedule, error)
	ChangeDuration(ctx context.Context, id string, delta int, now model.Minute) (model.Schedule, error)
	AdmitEmergency(ctx context.Context, procedure string, now model.Minute) (string, model.Schedule, error)
	Refresh(ctx context.Context, now model.Minute) (model.Schedule, error)
}

// Response is the body returned for the accepted schedule.
type Response struct {
	Revision string             `json:"revision"`
	Rows     []model.Assignment `json:"rows"`
	Stats    model.SolveStats   `json:"stats"`
	KPIs     report.KPIs        `json:"kpis"`
	// CaseID is set when an emergency was admitted.
	CaseID string `json:"case_id,omitempty"`
}

type delayRequest struct {
	CaseID  string `json:"case_id"`
	Minutes int    `json:"minutes"`
	Now     string `json:"now"`
}

type durationRequest struct {
	CaseID string `json:"case_id"`
	Delta  int    `json:"delta"`
	Now    string `json:"now"`
}

type emergencyRequest struct {
	Procedure string `json:"procedure"`
	Now       string `json:"now"`
}

type refreshRequest struct {
	Now string `json:"now"`
}

type handler struct {
	planner Planner
	store   history.Store
}

// NewHandler returns the schedule API. Requests must include an
// Authorization header with "Bearer <token>" when token is non-empty.
// A nil store serves an empty history.
func NewHandler(planner Planner, store history.Store, token string) http.Handler {
	if store == nil {
		store = history.NopStore{}
	}
	h := &handler{planner: planner, store: store}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/schedule", h.getSchedule)
	mux.HandleFunc("GET /api/schedule/history", h.getHistory)
	mux.HandleFunc("GET /api/cases", h.getCases)
	mux.HandleFunc("POST /api/events/delay", h.postDelay)
	mux.HandleFunc("POST /api/events/duration", h.postDuration)
	mux.HandleFunc("POST /api/events/emergency", h.postEmergency)
	mux.HandleFunc("POST /api/replan", h.postReplan)
	return requireToken(token, mux)
}

func requireToken(token string, next http.Handler) http.Handler {
	if token == "" {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+token {
			writeError(w, http.StatusUnauthorized, errors.New("unauthorized"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *handler) getSchedule(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.response(h.planner.Schedule(), ""))
}

func (h *handler) getCases(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.planner.Cases())
}

func (h *handler) getHistory(w http.ResponseWriter, r *http.Request) {
	v := r.URL.Query()
	q := history.Query{CaseID: v.Get("case_id"), Trigger: v.Get("trigger")}
	if s := v.Get("start"); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		q.Start = t
	}
	if s := v.Get("end"); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		q.End = t
	}
	if s := v.Get("accepted"); s != "" {
		b, err := strconv.ParseBool(s)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		q.Accepted = b
	}
	if s := v.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, errors.New("limit must be a non-negative integer"))
			return
		}
		q.Limit = n
	}
	revs, err := h.store.Query(r.Context(), q)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if revs == nil {
		revs = []history.Revision{}
	}
	writeJSON(w, http.StatusOK, revs)
}

func (h *handler) postDelay(w http.ResponseWriter, r *http.Request) {
	var req delayRequest
	now, ok := decode(w, r, &req, &req.Now)
	if !ok {
		return
	}
	sched, err := h.planner.DelayStart(r.Context(), req.CaseID, req.Minutes, now)
	h.reply(w, sched, "", err)
}

func (h *handler) postDuration(w http.ResponseWriter, r *http.Request) {
	var req durationRequest
	now, ok := decode(w, r, &req, &req.Now)
	if !ok {
		return
	}
	sched, err := h.planner.ChangeDuration(r.Context(), req.CaseID, req.Delta, now)
	h.reply(w, sched, "", err)
}

func (h *handler) postEmergency(w http.ResponseWriter, r *http.Request) {
	var req emergencyRequest
	now, ok := decode(w, r, &req, &req.Now)
	if !ok {
		return
	}
	id, sched, err := h.planner.AdmitEmergency(r.Context(), req.Procedure, now)
	h.reply(w, sched, id, err)
}

func (h *handler) postReplan(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	now, ok := decode(w, r, &req, &req.Now)
	if !ok {
		return
	}
	sched, err := h.planner.Refresh(r.Context(), now)
	h.reply(w, sched, "", err)
}

// decode reads the JSON body into req and parses the clock it carries.
// It writes the error response itself and reports false on failure.
func decode(w http.ResponseWriter, r *http.Request, req any, clock *string) (model.Minute, bool) {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return 0, false
	}
	now, err := model.ParseClock(*clock)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return 0, false
	}
	return now, true
}

func (h *handler) reply(w http.ResponseWriter, sched model.Schedule, caseID string, err error) {
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, h.response(sched, caseID))
}

func (h *handler) response(sched model.Schedule, caseID string) Response {
	rows := sched.Rows
	if rows == nil {
		rows = []model.Assignment{}
	}
	return Response{
		Revision: sched.Revision,
		Rows:     rows,
		Stats:    sched.Stats,
		KPIs:     report.Compute(h.planner.Topology(), h.planner.Cases(), sched),
		CaseID:   caseID,
	}
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, replan.ErrCaseNotFound):
		return http.StatusNotFound
	case errors.Is(err, model.ErrInvalidClock), errors.Is(err, replan.ErrInvalidEvent), errors.Is(err, replan.ErrDuplicateCase):
		return http.StatusBadRequest
	case errors.Is(err, scheduler.ErrInfeasible):
		return http.StatusConflict
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
