package schedule

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"clinica-lembretes/internal/store"
	"clinica-lembretes/pkg/models"
)

type Classificacao string

const (
	Agendado Classificacao = "agendado"
	JaAtivo  Classificacao = "ja_ativo"
	SemData  Classificacao = "sem_data"
)

type ResultadoPaciente struct {
	PatientID     string        `json:"patientId"`
	Classificacao Classificacao `json:"classificacao"`
}

// Resultado agrega a classificação de cada paciente alvo.
type Resultado struct {
	Agendados        int                 `json:"agendados"`
	JaAtivos         int                 `json:"jaAtivos"`
	SemData          int                 `json:"semData"`
	MensagensCriadas int                 `json:"mensagensCriadas"`
	Pacientes        []ResultadoPaciente `json:"pacientes"`
}

type Service struct {
	store store.Store
	loc   *time.Location
	now   func() time.Time
}

func NewService(s store.Store, loc *time.Location) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{store: s, loc: loc, now: time.Now}
}

// WithClock troca o relógio usado em createdAt.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

func (s *Service) loadWorkflow(ctx context.Context, tenantID, workflowID string) (*models.Workflow, error) {
	wf, err := s.store.GetWorkflow(ctx, tenantID, workflowID)
	if err != nil {
		return nil, err
	}
	if err := ValidateWorkflow(wf); err != nil {
		return nil, err
	}
	return wf, nil
}

func (s *Service) consultaDoPaciente(ctx context.Context, tenantID, patientID string) (*time.Time, error) {
	p, err := s.store.GetPaciente(ctx, tenantID, patientID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			log.Printf("⚠️  Paciente %s não encontrado na clínica %s, tratado como sem data", patientID, tenantID)
			return nil, nil
		}
		return nil, err
	}
	t, ok := p.ProximaConsulta(s.loc)
	if !ok {
		return nil, nil
	}
	return &t, nil
}

// SendNow agenda o workflow para todos os pacientes alvo. Todas as mensagens
// são gravadas numa única operação: ou tudo é gravado, ou nada.
func (s *Service) SendNow(ctx context.Context, tenantID, workflowID string) (*Resultado, error) {
	wf, err := s.loadWorkflow(ctx, tenantID, workflowID)
	if err != nil {
		return nil, err
	}
	if len(wf.Pacientes) == 0 {
		return nil, fmt.Errorf("%w: workflow %s sem pacientes", ErrValidacao, wf.ID)
	}

	now := s.now()
	res := &Resultado{}
	var planos []store.PlanoPaciente
	vistos := make(map[string]bool, len(wf.Pacientes))

	for _, pid := range wf.Pacientes {
		if pid == "" || vistos[pid] {
			continue
		}
		vistos[pid] = true

		consulta, err := s.consultaDoPaciente(ctx, tenantID, pid)
		if err != nil {
			return nil, fmt.Errorf("erro ao carregar paciente %s: %w", pid, err)
		}

		msgs, _, err := Expand(wf, tenantID, pid, consulta, now, s.loc)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrValidacao, err)
		}
		if len(msgs) == 0 {
			res.SemData++
			res.Pacientes = append(res.Pacientes, ResultadoPaciente{PatientID: pid, Classificacao: SemData})
			continue
		}
		planos = append(planos, store.PlanoPaciente{PatientID: pid, Mensagens: msgs})
	}

	if err := s.commit(ctx, tenantID, wf.ID, planos, res); err != nil {
		return nil, err
	}

	log.Printf("📅 Workflow %s (%s): %d agendado(s), %d já ativo(s), %d sem data",
		wf.ID, wf.Titulo, res.Agendados, res.JaAtivos, res.SemData)
	return res, nil
}

// ScheduleForAppointment agenda o workflow para um único paciente. Se consulta
// for nil, usa a próxima consulta cadastrada do paciente.
func (s *Service) ScheduleForAppointment(ctx context.Context, tenantID, workflowID, patientID string, consulta *time.Time) (*Resultado, error) {
	wf, err := s.loadWorkflow(ctx, tenantID, workflowID)
	if err != nil {
		return nil, err
	}

	if _, err := s.store.GetPaciente(ctx, tenantID, patientID); err != nil {
		return nil, err
	}
	if consulta == nil {
		consulta, err = s.consultaDoPaciente(ctx, tenantID, patientID)
		if err != nil {
			return nil, err
		}
	}

	res := &Resultado{}
	msgs, _, err := Expand(wf, tenantID, patientID, consulta, s.now(), s.loc)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidacao, err)
	}
	if len(msgs) == 0 {
		res.SemData = 1
		res.Pacientes = []ResultadoPaciente{{PatientID: patientID, Classificacao: SemData}}
		return res, nil
	}

	if err := s.commit(ctx, tenantID, wf.ID, []store.PlanoPaciente{{PatientID: patientID, Mensagens: msgs}}, res); err != nil {
		return nil, err
	}
	return res, nil
}

func (s *Service) commit(ctx context.Context, tenantID, workflowID string, planos []store.PlanoPaciente, res *Resultado) error {
	if len(planos) == 0 {
		return nil
	}

	criacao, err := s.store.CreatePending(ctx, tenantID, workflowID, planos)
	if err != nil {
		return fmt.Errorf("erro ao gravar mensagens agendadas: %w", err)
	}

	duplicados := make(map[string]bool, len(criacao.Duplicados))
	for _, pid := range criacao.Duplicados {
		duplicados[pid] = true
	}
	for _, p := range planos {
		if duplicados[p.PatientID] {
			res.JaAtivos++
			res.Pacientes = append(res.Pacientes, ResultadoPaciente{PatientID: p.PatientID, Classificacao: JaAtivo})
			continue
		}
		res.Agendados++
		res.Pacientes = append(res.Pacientes, ResultadoPaciente{PatientID: p.PatientID, Classificacao: Agendado})
	}
	res.MensagensCriadas += len(criacao.Criadas)
	return nil
}
