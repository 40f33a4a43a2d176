package schedule

import (
	"errors"
	"fmt"
	"time"

	"clinica-lembretes/pkg/models"
)

var (
	ErrSemDataConsulta = errors.New("paciente sem data de consulta")
	ErrValidacao       = errors.New("workflow inválido")
)

// SendTime calcula o instante de envio de um gatilho. Horas são somadas como
// duração; dias, semanas e meses seguem o calendário no fuso loc.
func SendTime(g models.Gatilho, consulta *time.Time, loc *time.Location) (time.Time, error) {
	switch v := g.(type) {
	case models.GatilhoEspecifico:
		return v.Em, nil
	case models.GatilhoRelativo:
		if consulta == nil || consulta.IsZero() {
			return time.Time{}, ErrSemDataConsulta
		}
		if loc == nil {
			loc = time.UTC
		}
		sinal := 1
		switch v.Evento {
		case models.EventoAntes:
			sinal = -1
		case models.EventoDepois:
		default:
			return time.Time{}, fmt.Errorf("evento inválido: %q", v.Evento)
		}
		q := sinal * v.Quantidade
		base := consulta.In(loc)
		switch v.Unidade {
		case models.UnidadeHoras:
			return base.Add(time.Duration(q) * time.Hour), nil
		case models.UnidadeDias:
			return base.AddDate(0, 0, q), nil
		case models.UnidadeSemanas:
			return base.AddDate(0, 0, 7*q), nil
		case models.UnidadeMeses:
			return base.AddDate(0, q, 0), nil
		default:
			return time.Time{}, fmt.Errorf("unidade inválida: %q", v.Unidade)
		}
	default:
		return time.Time{}, fmt.Errorf("gatilho desconhecido: %T", g)
	}
}

// ValidateWorkflow rejeita workflows que não podem gerar mensagens.
func ValidateWorkflow(wf *models.Workflow) error {
	if wf == nil {
		return fmt.Errorf("%w: workflow vazio", ErrValidacao)
	}
	if len(wf.Etapas) == 0 {
		return fmt.Errorf("%w: workflow %s não tem etapas", ErrValidacao, wf.ID)
	}
	if !wf.Ativo {
		return fmt.Errorf("%w: workflow %s está inativo", ErrValidacao, wf.ID)
	}
	for i, e := range wf.Etapas {
		if err := e.Validate(); err != nil {
			return fmt.Errorf("%w: etapa %d: %v", ErrValidacao, i+1, err)
		}
	}
	return nil
}

// Expand gera as mensagens pendentes de um paciente para cada etapa do
// workflow. Etapas relativas sem data de consulta são puladas e contadas em semData.
func Expand(wf *models.Workflow, tenantID, patientID string, consulta *time.Time, now time.Time, loc *time.Location) (msgs []models.MensagemAgendada, semData int, err error) {
	for i, etapa := range wf.Etapas {
		at, err := SendTime(etapa.Gatilho, consulta, loc)
		if errors.Is(err, ErrSemDataConsulta) {
			semData++
			continue
		}
		if err != nil {
			return nil, 0, fmt.Errorf("etapa %d: %w", i+1, err)
		}
		msgs = append(msgs, models.MensagemAgendada{
			UserID:        tenantID,
			PatientID:     patientID,
			TemplateID:    etapa.Template,
			WorkflowID:    wf.ID,
			Etapa:         i,
			ScheduledTime: at.UTC(),
			Status:        models.StatusAgendado,
			CreatedAt:     now.UTC(),
		})
	}
	return msgs, semData, nil
}
