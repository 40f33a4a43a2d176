package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"

	"clinica-lembretes/internal/middleware"
	"clinica-lembretes/internal/schedule"
	"clinica-lembretes/internal/store"
	"clinica-lembretes/internal/templates"
	"clinica-lembretes/pkg/models"

	"github.com/gorilla/mux"
)

func (s *Server) cronHandler(w http.ResponseWriter, r *http.Request) {
	res, err := s.cron.Run(r.Context(), s.now())
	if err != nil {
		log.Printf("❌ Erro no cron: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]interface{}{
			"success": false,
			"error":   err.Error(),
		})
		return
	}

	if res.Processadas == 0 {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"success": true,
			"message": "Nenhuma mensagem para enviar.",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":   true,
		"processed": res.Processadas,
	})
}

// scheduleErrorStatus traduz erros do agendamento em status HTTP.
func scheduleErrorStatus(err error) int {
	switch {
	case errors.Is(err, schedule.ErrValidacao):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) sendNowHandler(w http.ResponseWriter, r *http.Request) {
	tenantID := middleware.TenantID(r.Context())
	workflowID := mux.Vars(r)["workflowId"]

	res, err := s.agenda.SendNow(r.Context(), tenantID, workflowID)
	if err != nil {
		status := scheduleErrorStatus(err)
		if status == http.StatusInternalServerError {
			log.Printf("❌ Erro ao agendar workflow %s da clínica %s: %v", workflowID, tenantID, err)
		}
		writeError(w, status, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, res)
}

type scheduleRequest struct {
	AppointmentAt *time.Time `json:"appointmentAt"`
}

func (s *Server) scheduleHandler(w http.ResponseWriter, r *http.Request) {
	tenantID := middleware.TenantID(r.Context())
	vars := mux.Vars(r)

	var req scheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "JSON inválido: "+err.Error())
		return
	}

	res, err := s.agenda.ScheduleForAppointment(r.Context(), tenantID, vars["workflowId"], vars["patientId"], req.AppointmentAt)
	if err != nil {
		status := scheduleErrorStatus(err)
		if status == http.StatusInternalServerError {
			log.Printf("❌ Erro ao agendar paciente %s: %v", vars["patientId"], err)
		}
		writeError(w, status, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, res)
}

func (s *Server) listMessagesHandler(w http.ResponseWriter, r *http.Request) {
	tenantID := middleware.TenantID(r.Context())
	q := r.URL.Query()

	filtro := store.FiltroMensagens{Limit: 100}
	if v := q.Get("status"); v != "" {
		st, ok := models.ParseStatus(v)
		if !ok {
			writeError(w, http.StatusBadRequest, "status inválido: "+v)
			return
		}
		filtro.Status = &st
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit inválido: "+v)
			return
		}
		filtro.Limit = n
	}

	msgs, err := s.store.ListMessages(r.Context(), tenantID, filtro)
	if err != nil {
		log.Printf("❌ Erro ao listar mensagens da clínica %s: %v", tenantID, err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if msgs == nil {
		msgs = []models.MensagemAgendada{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"messages": msgs,
		"count":    len(msgs),
	})
}

func (s *Server) getMessageHandler(w http.ResponseWriter, r *http.Request) {
	tenantID := middleware.TenantID(r.Context())

	m, err := s.store.GetMessage(r.Context(), mux.Vars(r)["messageId"])
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	// mensagem de outra clínica responde como inexistente
	if m == nil || m.UserID != tenantID {
		writeError(w, http.StatusNotFound, "Mensagem não encontrada")
		return
	}

	writeJSON(w, http.StatusOK, m)
}

func (s *Server) cancelMessageHandler(w http.ResponseWriter, r *http.Request) {
	tenantID := middleware.TenantID(r.Context())
	id := mux.Vars(r)["messageId"]

	m, err := s.store.GetMessage(r.Context(), id)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if m == nil || m.UserID != tenantID {
		writeError(w, http.StatusNotFound, "Mensagem não encontrada")
		return
	}

	if err := s.store.Cancel(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrInvalidTransition) {
			writeError(w, http.StatusConflict, fmt.Sprintf("Mensagem já está %s", m.Status))
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	log.Printf("🚫 Mensagem %s cancelada pela clínica %s", id, tenantID)
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "id": id, "status": models.StatusCancelado})
}

func (s *Server) catalogHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"templates": templates.Catalogo(),
	})
}

func (s *Server) healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	httpStatus := http.StatusOK

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := s.store.Ping(ctx); err != nil {
		log.Printf("⚠️  Health check falhou: %v", err)
		status = "unhealthy"
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, map[string]string{
		"status": status,
		"time":   s.now().Format(time.RFC3339),
	})
}

func (s *Server) statsHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"uptime":    formatDuration(time.Since(s.startTime)),
		"store_ok":  s.store.Ping(ctx) == nil,
		"timestamp": s.now().Unix(),
	})
}

func (s *Server) logsHandler(w http.ResponseWriter, r *http.Request) {
	logs := []string{}
	if s.logs != nil {
		logs = s.logs()
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"logs": logs,
	})
}
