// Package api expõe o gatilho do cron e as operações de agendamento por HTTP.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"clinica-lembretes/internal/dispatcher"
	"clinica-lembretes/internal/middleware"
	"clinica-lembretes/internal/schedule"
	"clinica-lembretes/internal/store"

	"github.com/gorilla/mux"
)

// CronRunner executa uma rodada do dispatcher.
type CronRunner interface {
	Run(ctx context.Context, now time.Time) (*dispatcher.Resultado, error)
}

type Server struct {
	store      store.Store
	agenda     *schedule.Service
	cron       CronRunner
	cronSecret string
	tenantAuth *middleware.TenantAuth
	logs       func() []string
	now        func() time.Time
	startTime  time.Time
}

type Options struct {
	Store      store.Store
	Agenda     *schedule.Service
	Cron       CronRunner
	CronSecret string
	TenantAuth *middleware.TenantAuth
	// Logs devolve as últimas linhas de log do processo; opcional.
	Logs func() []string
}

func NewServer(opts Options) *Server {
	return &Server{
		store:      opts.Store,
		agenda:     opts.Agenda,
		cron:       opts.Cron,
		cronSecret: opts.CronSecret,
		tenantAuth: opts.TenantAuth,
		logs:       opts.Logs,
		now:        time.Now,
		startTime:  time.Now(),
	}
}

func (s *Server) Router() *mux.Router {
	router := mux.NewRouter()

	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/health", s.healthCheckHandler).Methods("GET")
	api.HandleFunc("/stats", s.statsHandler).Methods("GET")
	api.HandleFunc("/templates/catalog", s.catalogHandler).Methods("GET")

	cron := middleware.RequireCronSecret(s.cronSecret)
	api.Handle("/cron", cron(http.HandlerFunc(s.cronHandler))).Methods("GET", "POST")
	// o buffer de logs tem dados de todas as clínicas: só para o operador
	api.Handle("/logs", cron(http.HandlerFunc(s.logsHandler))).Methods("GET")

	tenant := func(h http.HandlerFunc) http.Handler { return s.tenantAuth.Middleware(h) }
	api.Handle("/workflows/{workflowId}/send-now", tenant(s.sendNowHandler)).Methods("POST")
	api.Handle("/workflows/{workflowId}/patients/{patientId}/schedule", tenant(s.scheduleHandler)).Methods("POST")
	api.Handle("/messages", tenant(s.listMessagesHandler)).Methods("GET")
	api.Handle("/messages/{messageId}", tenant(s.getMessageHandler)).Methods("GET")
	api.Handle("/messages/{messageId}/cancel", tenant(s.cancelMessageHandler)).Methods("POST")

	return router
}

// Handler devolve o router com CORS.
func (s *Server) Handler() http.Handler {
	return corsMiddleware(s.Router())
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-User-ID, Accept")

		// Responde preflight imediatamente
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func formatDuration(d time.Duration) string {
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	if hours > 0 {
		return fmt.Sprintf("%dh %dm %ds", hours, minutes, seconds)
	}
	if minutes > 0 {
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	}
	return fmt.Sprintf("%ds", seconds)
}
