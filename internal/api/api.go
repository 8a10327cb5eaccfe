// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mrdp/mrdp/internal/db"
	"github.com/mrdp/mrdp/internal/server"
)

const (
	// ServiceName identifies the service in health checks and metrics.
	ServiceName = "api-service"

	DefaultLimit = 100
	MaxLimit     = 1000
	DefaultDays  = 30

	// DefaultProcedureStatus applies when no status parameter is sent. An
	// explicit empty status lists every status.
	DefaultProcedureStatus = "completed"
)

// API serves the query endpoints.
type API struct {
	Store Store
	now   func() time.Time
}

// New returns an API reading from store.
func New(store Store) *API {
	return &API{Store: store, now: time.Now}
}

// Routes mounts the endpoints on r.
func (a *API) Routes(r chi.Router) {
	r.Get("/health", a.health)
	r.Route("/api", func(r chi.Router) {
		r.Get("/health", a.health)
		r.Get("/robots", a.robots)
		r.Get("/robots/{id}", a.robot)
		r.Get("/procedures", a.procedures)
		r.Get("/procedures/{id}", a.procedure)
		r.Get("/outcomes", a.outcomes)
		r.Route("/analytics", func(r chi.Router) {
			r.Get("/robot-utilization", a.robotUtilization)
			r.Get("/outcomes-summary", a.outcomesSummary)
			r.Get("/procedures-by-category", a.proceduresByCategory)
		})
	})
}

func (a *API) health(w http.ResponseWriter, r *http.Request) {
	server.WriteJSON(w, http.StatusOK, map[string]string{"status": "healthy", "service": ServiceName})
}

func (a *API) robots(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	rows, err := a.Store.Robots(r.Context(), q.Get("facility_id"), q.Get("status"))
	if err != nil {
		server.Fail(w, r, err)
		return
	}
	server.WriteJSON(w, http.StatusOK, map[string]any{"count": len(rows), "robots": nonNil(rows)})
}

func (a *API) robot(w http.ResponseWriter, r *http.Request) {
	robot, n, err := a.Store.Robot(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, ErrNotFound) {
		server.WriteError(w, http.StatusNotFound, "Robot not found")
		return
	}
	if err != nil {
		server.Fail(w, r, err)
		return
	}
	server.WriteJSON(w, http.StatusOK, map[string]any{"robot": robot, "procedure_count": n})
}

func (a *API) procedures(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, err := intParam(r, "limit", DefaultLimit, MaxLimit)
	if err != nil {
		server.Fail(w, r, err)
		return
	}
	offset, err := intParam(r, "offset", 0, 0)
	if err != nil {
		server.Fail(w, r, err)
		return
	}
	status := DefaultProcedureStatus
	if v, ok := q["status"]; ok {
		status = v[0]
	}

	rows, err := a.Store.Procedures(r.Context(), ProcedureFilter{
		RobotID:  q.Get("robot_id"),
		Category: q.Get("category"),
		Status:   status,
		Limit:    limit,
		Offset:   offset,
	})
	if err != nil {
		server.Fail(w, r, err)
		return
	}
	server.WriteJSON(w, http.StatusOK, map[string]any{
		"count":      len(rows),
		"limit":      limit,
		"offset":     offset,
		"procedures": nonNil(rows),
	})
}

func (a *API) procedure(w http.ResponseWriter, r *http.Request) {
	p, o, err := a.Store.Procedure(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, ErrNotFound) {
		server.WriteError(w, http.StatusNotFound, "Procedure not found")
		return
	}
	if err != nil {
		server.Fail(w, r, err)
		return
	}
	// A procedure without an outcome renders "outcome": null.
	var outcome any
	if o != nil {
		outcome = o
	}
	server.WriteJSON(w, http.StatusOK, map[string]any{"procedure": p, "outcome": outcome})
}

func (a *API) outcomes(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r, "limit", DefaultLimit, MaxLimit)
	if err != nil {
		server.Fail(w, r, err)
		return
	}
	rows, err := a.Store.Outcomes(r.Context(), r.URL.Query().Get("success_status"), limit)
	if err != nil {
		server.Fail(w, r, err)
		return
	}
	server.WriteJSON(w, http.StatusOK, map[string]any{"count": len(rows), "outcomes": nonNil(rows)})
}

func (a *API) robotUtilization(w http.ResponseWriter, r *http.Request) {
	rows, err := a.Store.RobotUtilization(r.Context())
	if err != nil {
		server.Fail(w, r, err)
		return
	}
	server.WriteJSON(w, http.StatusOK, map[string]any{"count": len(rows), "utilization": nonNil(rows)})
}

func (a *API) outcomesSummary(w http.ResponseWriter, r *http.Request) {
	rows, err := a.Store.OutcomesSummary(r.Context())
	if err != nil {
		server.Fail(w, r, err)
		return
	}
	server.WriteJSON(w, http.StatusOK, map[string]any{"summary": nonNil(rows)})
}

func (a *API) proceduresByCategory(w http.ResponseWriter, r *http.Request) {
	days, err := intParam(r, "days", DefaultDays, 0)
	if err != nil {
		server.Fail(w, r, err)
		return
	}
	since := a.now().AddDate(0, 0, -days)
	rows, err := a.Store.ProceduresByCategory(r.Context(), since)
	if err != nil {
		server.Fail(w, r, err)
		return
	}
	server.WriteJSON(w, http.StatusOK, map[string]any{"days": days, "categories": nonNil(rows)})
}

// intParam parses a non-negative integer query parameter, returning def
// when it is absent. Values above ceiling (when set) are clamped.
func intParam(r *http.Request, name string, def, ceiling int) (int, error) {
	s := r.URL.Query().Get(name)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, server.Errorf(http.StatusBadRequest, "invalid %s: must be a non-negative integer", name)
	}
	if ceiling > 0 && n > ceiling {
		n = ceiling
	}
	return n, nil
}

func nonNil(rows []db.Row) []db.Row {
	if rows == nil {
		return []db.Row{}
	}
	return rows
}
