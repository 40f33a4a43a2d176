package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"clinica-lembretes/pkg/models"

	"github.com/google/uuid"
)

// MemoryStore guarda tudo em mapas protegidos por mutex. Usado em testes e
// em desenvolvimento local (STORE_BACKEND=memory).
type MemoryStore struct {
	mu        sync.Mutex
	clinicas  map[string]models.Clinica
	pacientes map[string]map[string]models.Paciente
	workflows map[string]map[string]models.Workflow
	templates map[string]map[string]models.TemplatePersonalizado
	mensagens map[string]models.MensagemAgendada
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		clinicas:  make(map[string]models.Clinica),
		pacientes: make(map[string]map[string]models.Paciente),
		workflows: make(map[string]map[string]models.Workflow),
		templates: make(map[string]map[string]models.TemplatePersonalizado),
		mensagens: make(map[string]models.MensagemAgendada),
	}
}

func (s *MemoryStore) PutClinica(c models.Clinica) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clinicas[c.ID] = c
}

func (s *MemoryStore) PutPaciente(tenantID string, p models.Paciente) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pacientes[tenantID] == nil {
		s.pacientes[tenantID] = make(map[string]models.Paciente)
	}
	s.pacientes[tenantID][p.ID] = p
}

func (s *MemoryStore) PutWorkflow(tenantID string, w models.Workflow) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.workflows[tenantID] == nil {
		s.workflows[tenantID] = make(map[string]models.Workflow)
	}
	s.workflows[tenantID][w.ID] = w
}

func (s *MemoryStore) PutTemplatePersonalizado(tenantID string, t models.TemplatePersonalizado) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.templates[tenantID] == nil {
		s.templates[tenantID] = make(map[string]models.TemplatePersonalizado)
	}
	s.templates[tenantID][t.ID] = t
}

// PutMessage grava a mensagem como está, sem checagem de duplicidade.
func (s *MemoryStore) PutMessage(m models.MensagemAgendada) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	s.mensagens[m.ID] = m
	return m.ID
}

func (s *MemoryStore) GetWorkflow(_ context.Context, tenantID, workflowID string) (*models.Workflow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.workflows[tenantID][workflowID]
	if !ok {
		return nil, fmt.Errorf("workflow %s: %w", workflowID, ErrNotFound)
	}
	return &w, nil
}

func (s *MemoryStore) GetPaciente(_ context.Context, tenantID, patientID string) (*models.Paciente, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pacientes[tenantID][patientID]
	if !ok {
		return nil, fmt.Errorf("paciente %s: %w", patientID, ErrNotFound)
	}
	return &p, nil
}

func (s *MemoryStore) GetClinica(_ context.Context, tenantID string) (*models.Clinica, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.clinicas[tenantID]
	if !ok {
		return nil, fmt.Errorf("clinica %s: %w", tenantID, ErrNotFound)
	}
	return &c, nil
}

func (s *MemoryStore) GetTemplatePersonalizado(_ context.Context, tenantID, templateID string) (*models.TemplatePersonalizado, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.templates[tenantID][templateID]
	if !ok {
		return nil, fmt.Errorf("template %s: %w", templateID, ErrNotFound)
	}
	return &t, nil
}

func (s *MemoryStore) CreatePending(_ context.Context, tenantID, workflowID string, planos []PlanoPaciente) (*ResultadoCriacao, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pendentes := make(map[string]bool)
	for _, m := range s.mensagens {
		if m.UserID == tenantID && m.WorkflowID == workflowID && m.Status == models.StatusAgendado {
			pendentes[m.PatientID] = true
		}
	}

	res := &ResultadoCriacao{}
	for _, plano := range planos {
		if pendentes[plano.PatientID] {
			res.Duplicados = append(res.Duplicados, plano.PatientID)
			continue
		}
		for _, m := range plano.Mensagens {
			if m.ID == "" {
				m.ID = uuid.NewString()
			}
			res.Criadas = append(res.Criadas, m)
		}
		pendentes[plano.PatientID] = true
	}

	for _, m := range res.Criadas {
		s.mensagens[m.ID] = m
	}
	return res, nil
}

func (s *MemoryStore) ListDue(_ context.Context, now time.Time) ([]models.MensagemAgendada, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var due []models.MensagemAgendada
	for _, m := range s.mensagens {
		if m.IsDue(now) {
			due = append(due, m)
		}
	}
	return due, nil
}

func (s *MemoryStore) transition(id string, next models.StatusMensagem, apply func(*models.MensagemAgendada)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.mensagens[id]
	if !ok {
		return fmt.Errorf("mensagem %s: %w", id, ErrNotFound)
	}
	if !m.Status.CanTransitionTo(next) {
		return fmt.Errorf("mensagem %s %s -> %s: %w", id, m.Status, next, ErrInvalidTransition)
	}
	m.Status = next
	apply(&m)
	s.mensagens[id] = m
	return nil
}

func (s *MemoryStore) MarkSent(_ context.Context, messageID string, sentAt time.Time) error {
	return s.transition(messageID, models.StatusEnviado, func(m *models.MensagemAgendada) {
		m.SentAt = &sentAt
		m.Error = ""
	})
}

func (s *MemoryStore) MarkFailed(_ context.Context, messageID, reason string) error {
	return s.transition(messageID, models.StatusFalhou, func(m *models.MensagemAgendada) {
		m.Error = reason
	})
}

func (s *MemoryStore) Cancel(_ context.Context, messageID string) error {
	return s.transition(messageID, models.StatusCancelado, func(*models.MensagemAgendada) {})
}

func (s *MemoryStore) ListMessages(_ context.Context, tenantID string, filtro FiltroMensagens) ([]models.MensagemAgendada, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.MensagemAgendada
	for _, m := range s.mensagens {
		if m.UserID != tenantID {
			continue
		}
		if filtro.Status != nil && m.Status != *filtro.Status {
			continue
		}
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ScheduledTime.After(out[j].ScheduledTime) })
	if filtro.Limit > 0 && len(out) > filtro.Limit {
		out = out[:filtro.Limit]
	}
	return out, nil
}

func (s *MemoryStore) GetMessage(_ context.Context, messageID string) (*models.MensagemAgendada, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.mensagens[messageID]
	if !ok {
		return nil, fmt.Errorf("mensagem %s: %w", messageID, ErrNotFound)
	}
	return &m, nil
}

func (s *MemoryStore) Ping(context.Context) error { return nil }
func (s *MemoryStore) Close() error               { return nil }
