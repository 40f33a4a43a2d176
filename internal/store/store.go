// Package store define o acesso aos dados de cada clínica e à fila de
// mensagens agendadas, com implementações em Firestore e em memória.
// A implementação Postgres fica em internal/database.
package store

import (
	"context"
	"errors"
	"time"

	"clinica-lembretes/pkg/models"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidTransition = errors.New("invalid status transition")
)

// PlanoPaciente são as mensagens calculadas para um paciente de um workflow.
type PlanoPaciente struct {
	PatientID string
	Mensagens []models.MensagemAgendada
}

// ResultadoCriacao separa o que foi gravado do que já tinha mensagem pendente.
type ResultadoCriacao struct {
	Criadas    []models.MensagemAgendada
	Duplicados []string
}

type FiltroMensagens struct {
	Status *models.StatusMensagem
	Limit  int
}

type Store interface {
	GetWorkflow(ctx context.Context, tenantID, workflowID string) (*models.Workflow, error)
	GetPaciente(ctx context.Context, tenantID, patientID string) (*models.Paciente, error)
	GetClinica(ctx context.Context, tenantID string) (*models.Clinica, error)
	GetTemplatePersonalizado(ctx context.Context, tenantID, templateID string) (*models.TemplatePersonalizado, error)

	// CreatePending grava todas as mensagens dos planos numa única operação atômica.
	// Um paciente que já tem mensagem Agendado para o workflow é devolvido em
	// Duplicados e nada é gravado para ele. A checagem e a escrita são atômicas.
	CreatePending(ctx context.Context, tenantID, workflowID string, planos []PlanoPaciente) (*ResultadoCriacao, error)

	// ListDue devolve mensagens Agendado com scheduledTime <= now, de todas as clínicas.
	ListDue(ctx context.Context, now time.Time) ([]models.MensagemAgendada, error)

	// MarkSent e MarkFailed só transicionam a partir de Agendado; caso contrário
	// devolvem ErrInvalidTransition.
	MarkSent(ctx context.Context, messageID string, sentAt time.Time) error
	MarkFailed(ctx context.Context, messageID, reason string) error

	// Cancel tira da fila uma mensagem ainda Agendado.
	Cancel(ctx context.Context, messageID string) error

	ListMessages(ctx context.Context, tenantID string, filtro FiltroMensagens) ([]models.MensagemAgendada, error)
	GetMessage(ctx context.Context, messageID string) (*models.MensagemAgendada, error)

	Ping(ctx context.Context) error
	Close() error
}
