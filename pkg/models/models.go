package models

import (
	"strings"
	"time"
)

// StatusMensagem é o estado de uma mensagem agendada na fila de envio.
type StatusMensagem string

const (
	StatusAgendado  StatusMensagem = "Agendado"
	StatusEnviado   StatusMensagem = "Enviado"
	StatusFalhou    StatusMensagem = "Falhou"
	StatusCancelado StatusMensagem = "Cancelado"
)

// IsTerminal indica se a mensagem já saiu da fila.
func (s StatusMensagem) IsTerminal() bool {
	return s == StatusEnviado || s == StatusFalhou || s == StatusCancelado
}

// CanTransitionTo aplica a máquina de estados Agendado -> Enviado | Falhou.
// Cancelado só é alcançado por ação administrativa, fora do dispatcher.
func (s StatusMensagem) CanTransitionTo(next StatusMensagem) bool {
	if s != StatusAgendado {
		return false
	}
	return next == StatusEnviado || next == StatusFalhou || next == StatusCancelado
}

func ParseStatus(v string) (StatusMensagem, bool) {
	switch StatusMensagem(v) {
	case StatusAgendado, StatusEnviado, StatusFalhou, StatusCancelado:
		return StatusMensagem(v), true
	}
	return "", false
}

// MensagemAgendada é a unidade de trabalho do dispatcher.
type MensagemAgendada struct {
	ID            string         `json:"id" firestore:"-"`
	UserID        string         `json:"userId" firestore:"userId"`
	PatientID     string         `json:"patientId" firestore:"patientId"`
	TemplateID    string         `json:"templateId" firestore:"templateId"`
	WorkflowID    string         `json:"workflowId,omitempty" firestore:"workflowId,omitempty"`
	Etapa         int            `json:"etapa" firestore:"etapa"`
	ScheduledTime time.Time      `json:"scheduledTime" firestore:"scheduledTime"`
	Status        StatusMensagem `json:"status" firestore:"status"`
	Error         string         `json:"error,omitempty" firestore:"error,omitempty"`
	CreatedAt     time.Time      `json:"createdAt" firestore:"createdAt"`
	SentAt        *time.Time     `json:"sentAt,omitempty" firestore:"sentAt,omitempty"`
}

// IsDue indica se a mensagem deve ser processada na execução de now.
func (m MensagemAgendada) IsDue(now time.Time) bool {
	return m.Status == StatusAgendado && !m.ScheduledTime.After(now)
}

type StatusPaciente string

const (
	PacienteAtivo      StatusPaciente = "Ativo"
	PacienteIncompleto StatusPaciente = "Incompleto"
)

// Paciente pertence a uma clínica (tenant). A consulta é guardada como
// data (YYYY-MM-DD) e hora (HH:MM) separadas, no fuso da clínica.
type Paciente struct {
	ID                  string `json:"id" firestore:"-"`
	Nome                string `json:"nome" firestore:"nome"`
	Telefone            string `json:"telefone" firestore:"telefone"`
	DataProximaConsulta string `json:"dataProximaConsulta,omitempty" firestore:"dataProximaConsulta,omitempty"`
	HoraProximaConsulta string `json:"horaProximaConsulta,omitempty" firestore:"horaProximaConsulta,omitempty"`
}

func (p Paciente) Status() StatusPaciente {
	if strings.TrimSpace(p.DataProximaConsulta) != "" && strings.TrimSpace(p.HoraProximaConsulta) != "" {
		return PacienteAtivo
	}
	return PacienteIncompleto
}

// ProximaConsulta devolve o instante da próxima consulta em loc.
// ok é false se o cadastro estiver incompleto ou com formato inválido.
func (p Paciente) ProximaConsulta(loc *time.Location) (t time.Time, ok bool) {
	if p.Status() != PacienteAtivo {
		return time.Time{}, false
	}
	if loc == nil {
		loc = time.UTC
	}
	raw := strings.TrimSpace(p.DataProximaConsulta) + " " + strings.TrimSpace(p.HoraProximaConsulta)
	t, err := time.ParseInLocation("2006-01-02 15:04", raw, loc)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// Clinica é o perfil do tenant (users/{uid}).
type Clinica struct {
	ID                    string `json:"id" firestore:"-"`
	NomeClinica           string `json:"nomeClinica" firestore:"nomeClinica"`
	Email                 string `json:"email,omitempty" firestore:"email,omitempty"`
	DeviceToken           string `json:"deviceToken,omitempty" firestore:"deviceToken,omitempty"`
	WhatsAppPhoneNumberID string `json:"whatsappPhoneNumberId,omitempty" firestore:"whatsappPhoneNumberId,omitempty"`
	WhatsAppAccessToken   string `json:"-" firestore:"whatsappAccessToken,omitempty"`
}

// TemplatePersonalizado é um template criado pela própria clínica.
type TemplatePersonalizado struct {
	ID       string `json:"id" firestore:"-"`
	Titulo   string `json:"titulo" firestore:"titulo"`
	Conteudo string `json:"conteudo" firestore:"conteudo"`
	Padrao   bool   `json:"padrao" firestore:"padrao"`
}
