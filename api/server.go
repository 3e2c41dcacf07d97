/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for frontend

ROUTE GROUPS:
  /api/employees/*      Employees and their effective-dated records
  /api/components       Pay component catalog
  /api/plans            Payroll plan documents
  /api/periods/*        Pay periods and inputs
  /api/runs/*           Run lifecycle
  /api/rates/*          Exchange rates
  /api/scenarios/*      Demo scenarios

SECURITY NOTE:
  No authentication middleware currently. All endpoints are public.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Employee routes
		r.Route("/employees", func(r chi.Router) {
			r.Get("/", h.ListEmployees)
			r.Post("/", h.CreateEmployee)
			r.Get("/{id}", h.GetEmployee)
			r.Get("/{id}/compensation", h.ListCompensation)
			r.Post("/{id}/compensation", h.CreateCompensation)
			r.Post("/{id}/compensation/terminate", h.TerminateCompensation)
			r.Get("/{id}/deductions", h.ListDeductions)
			r.Post("/{id}/deductions", h.CreateDeduction)
		})

		// Configuration routes
		r.Get("/components", h.ListComponents)
		r.Post("/plans", h.ApplyPlan)
		r.Route("/rates", func(r chi.Router) {
			r.Post("/", h.CreateRate)
			r.Get("/resolve", h.ResolveRate)
		})

		// Period routes
		r.Route("/periods", func(r chi.Router) {
			r.Get("/", h.ListPeriods)
			r.Post("/", h.CreatePeriod)
			r.Get("/{id}/inputs", h.ListInputs)
			r.Post("/{id}/inputs", h.CreateInput)
			r.Post("/{id}/reopen", h.ReopenPeriod)
		})

		// Run lifecycle routes
		r.Route("/runs", func(r chi.Router) {
			r.Post("/", h.CreateRun)
			r.Get("/{id}", h.GetRunSummary)
			r.Post("/{id}/calculate", h.CalculateRun)
			r.Post("/{id}/recalculate", h.RecalculateRun)
			r.Post("/{id}/approve", h.ApproveRun)
			r.Post("/{id}/post", h.PostRun)
			r.Get("/{id}/results", h.ListResults)
		})
		r.Get("/results/{id}/lines", h.ListLines)

		// Scenario routes
		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Get("/current", h.GetCurrentScenario)
			r.Post("/load", h.LoadScenario)
			r.Post("/reset", h.ResetStore)
		})
	})

	// Landing page for anyone hitting the root in a browser
	r.Get("/*", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<!DOCTYPE html>
<html>
<head><title>Payroll Engine</title></head>
<body style="font-family: system-ui; max-width: 800px; margin: 50px auto; padding: 20px;">
<h1>Payroll Engine API</h1>
<h2>API Endpoints</h2>
<ul>
<li><a href="/api/employees">/api/employees</a> - List employees</li>
<li><a href="/api/components">/api/components</a> - Pay component catalog</li>
<li><a href="/api/periods">/api/periods</a> - Pay periods</li>
<li><a href="/api/scenarios">/api/scenarios</a> - Demo scenarios</li>
</ul>
</body>
</html>`))
	})

	return r
}
