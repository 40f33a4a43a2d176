package schedule

import (
	"context"
	"errors"
	"testing"
	"time"

	"clinica-lembretes/internal/store"
	"clinica-lembretes/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var agora = time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)

func lembrete24h() models.Etapa {
	return models.Etapa{
		Template: "lembrete_consulta_24h",
		Gatilho:  models.GatilhoRelativo{Quantidade: 24, Unidade: models.UnidadeHoras, Evento: models.EventoAntes},
	}
}

func novoServico(s store.Store) *Service {
	return NewService(s, time.UTC).WithClock(func() time.Time { return agora })
}

func TestSendNowLembreteScenario(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	s.PutPaciente("u1", models.Paciente{ID: "P", Nome: "Maria", Telefone: "11999990000", DataProximaConsulta: "2024-07-01", HoraProximaConsulta: "10:00"})
	s.PutWorkflow("u1", models.Workflow{ID: "wf", Titulo: "Lembrete", Ativo: true, Pacientes: []string{"P"}, Etapas: []models.Etapa{lembrete24h()}})

	res, err := novoServico(s).SendNow(ctx, "u1", "wf")
	require.NoError(t, err)
	assert.Equal(t, 1, res.Agendados)
	assert.Equal(t, 0, res.JaAtivos)
	assert.Equal(t, 0, res.SemData)

	msgs, err := s.ListMessages(ctx, "u1", store.FiltroMensagens{})
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "P", msgs[0].PatientID)
	assert.Equal(t, models.StatusAgendado, msgs[0].Status)
	assert.True(t, time.Date(2024, 6, 30, 10, 0, 0, 0, time.UTC).Equal(msgs[0].ScheduledTime))
}

func TestSendNowIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	s.PutPaciente("u1", models.Paciente{ID: "P", Nome: "Maria", DataProximaConsulta: "2024-07-01", HoraProximaConsulta: "10:00"})
	s.PutWorkflow("u1", models.Workflow{ID: "wf", Ativo: true, Pacientes: []string{"P"}, Etapas: []models.Etapa{lembrete24h()}})
	svc := novoServico(s)

	_, err := svc.SendNow(ctx, "u1", "wf")
	require.NoError(t, err)

	res, err := svc.SendNow(ctx, "u1", "wf")
	require.NoError(t, err)
	assert.Equal(t, 0, res.Agendados)
	assert.Equal(t, 1, res.JaAtivos)
	assert.Equal(t, 0, res.MensagensCriadas)

	msgs, err := s.ListMessages(ctx, "u1", store.FiltroMensagens{})
	require.NoError(t, err)
	assert.Len(t, msgs, 1)
}

func TestSendNowClassifiesEveryPatient(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	s.PutPaciente("u1", models.Paciente{ID: "ativo", Nome: "Ana", DataProximaConsulta: "2024-07-01", HoraProximaConsulta: "10:00"})
	s.PutPaciente("u1", models.Paciente{ID: "incompleto", Nome: "Bruno", DataProximaConsulta: "2024-07-01"})
	s.PutPaciente("u1", models.Paciente{ID: "repetido", Nome: "Carla", DataProximaConsulta: "2024-07-02", HoraProximaConsulta: "09:00"})
	s.PutMessage(models.MensagemAgendada{UserID: "u1", PatientID: "repetido", WorkflowID: "wf", Status: models.StatusAgendado, ScheduledTime: agora})
	s.PutWorkflow("u1", models.Workflow{
		ID: "wf", Ativo: true,
		Pacientes: []string{"ativo", "incompleto", "repetido", "sumido", "ativo"},
		Etapas:    []models.Etapa{lembrete24h()},
	})

	res, err := novoServico(s).SendNow(ctx, "u1", "wf")
	require.NoError(t, err)
	assert.Equal(t, 1, res.Agendados)
	assert.Equal(t, 1, res.JaAtivos)
	assert.Equal(t, 2, res.SemData)
	assert.Len(t, res.Pacientes, 4)

	classes := map[string]Classificacao{}
	for _, p := range res.Pacientes {
		classes[p.PatientID] = p.Classificacao
	}
	assert.Equal(t, Agendado, classes["ativo"])
	assert.Equal(t, SemData, classes["incompleto"])
	assert.Equal(t, JaAtivo, classes["repetido"])
	assert.Equal(t, SemData, classes["sumido"])
}

func TestSendNowEspecificoSameTimeForAll(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	em := time.Date(2024, 12, 24, 12, 0, 0, 0, time.UTC)
	s.PutPaciente("u1", models.Paciente{ID: "a", Nome: "Ana", DataProximaConsulta: "2024-07-01", HoraProximaConsulta: "10:00"})
	s.PutPaciente("u1", models.Paciente{ID: "b", Nome: "Bia", DataProximaConsulta: "2024-09-15", HoraProximaConsulta: "16:30"})
	s.PutPaciente("u1", models.Paciente{ID: "c", Nome: "Caio"})
	s.PutWorkflow("u1", models.Workflow{
		ID: "natal", Ativo: true, Pacientes: []string{"a", "b", "c"},
		Etapas: []models.Etapa{{Template: "aniversario", Gatilho: models.GatilhoEspecifico{Em: em}}},
	})

	res, err := novoServico(s).SendNow(ctx, "u1", "natal")
	require.NoError(t, err)
	assert.Equal(t, 3, res.Agendados)

	msgs, err := s.ListMessages(ctx, "u1", store.FiltroMensagens{})
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	for _, m := range msgs {
		assert.True(t, em.Equal(m.ScheduledTime), "paciente %s", m.PatientID)
	}
}

func TestSendNowValidation(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	s.PutWorkflow("u1", models.Workflow{ID: "vazio", Ativo: true, Pacientes: []string{"P"}})
	s.PutWorkflow("u1", models.Workflow{ID: "inativo", Ativo: false, Pacientes: []string{"P"}, Etapas: []models.Etapa{lembrete24h()}})
	s.PutWorkflow("u1", models.Workflow{ID: "sem-alvos", Ativo: true, Etapas: []models.Etapa{lembrete24h()}})
	svc := novoServico(s)

	res, err := svc.SendNow(ctx, "u1", "sem-alvos")
	assert.ErrorIs(t, err, ErrValidacao)
	assert.Nil(t, res)

	_, err = svc.SendNow(ctx, "u1", "vazio")
	assert.ErrorIs(t, err, ErrValidacao)

	_, err = svc.SendNow(ctx, "u1", "inativo")
	assert.ErrorIs(t, err, ErrValidacao)

	_, err = svc.SendNow(ctx, "u1", "nao-existe")
	assert.ErrorIs(t, err, store.ErrNotFound)

	msgs, err := s.ListMessages(ctx, "u1", store.FiltroMensagens{})
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

type failingCreate struct {
	*store.MemoryStore
}

func (failingCreate) CreatePending(context.Context, string, string, []store.PlanoPaciente) (*store.ResultadoCriacao, error) {
	return nil, errors.New("transaction aborted")
}

func TestSendNowWriteFailureLeavesNothing(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemoryStore()
	mem.PutPaciente("u1", models.Paciente{ID: "a", Nome: "Ana", DataProximaConsulta: "2024-07-01", HoraProximaConsulta: "10:00"})
	mem.PutPaciente("u1", models.Paciente{ID: "b", Nome: "Bia", DataProximaConsulta: "2024-07-02", HoraProximaConsulta: "10:00"})
	mem.PutWorkflow("u1", models.Workflow{ID: "wf", Ativo: true, Pacientes: []string{"a", "b"}, Etapas: []models.Etapa{lembrete24h()}})

	_, err := novoServico(failingCreate{mem}).SendNow(ctx, "u1", "wf")
	require.Error(t, err)

	msgs, err := mem.ListMessages(ctx, "u1", store.FiltroMensagens{})
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestScheduleForAppointment(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	s.PutPaciente("u1", models.Paciente{ID: "P", Nome: "Maria"})
	s.PutWorkflow("u1", models.Workflow{ID: "wf", Ativo: true, Etapas: []models.Etapa{
		lembrete24h(),
		{Template: "pos_consulta", Gatilho: models.GatilhoRelativo{Quantidade: 2, Unidade: models.UnidadeDias, Evento: models.EventoDepois}},
	}})
	svc := novoServico(s)

	// sem consulta explícita e paciente incompleto
	res, err := svc.ScheduleForAppointment(ctx, "u1", "wf", "P", nil)
	require.NoError(t, err)
	assert.Equal(t, 1, res.SemData)

	consulta := time.Date(2024, 6, 10, 14, 0, 0, 0, time.UTC)
	res, err = svc.ScheduleForAppointment(ctx, "u1", "wf", "P", &consulta)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Agendados)
	assert.Equal(t, 2, res.MensagensCriadas)

	msgs, err := s.ListMessages(ctx, "u1", store.FiltroMensagens{})
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	horarios := []time.Time{msgs[0].ScheduledTime, msgs[1].ScheduledTime}
	assert.Contains(t, horarios, time.Date(2024, 6, 12, 14, 0, 0, 0, time.UTC))
	assert.Contains(t, horarios, time.Date(2024, 6, 9, 14, 0, 0, 0, time.UTC))

	res, err = svc.ScheduleForAppointment(ctx, "u1", "wf", "P", &consulta)
	require.NoError(t, err)
	assert.Equal(t, 1, res.JaAtivos)

	_, err = svc.ScheduleForAppointment(ctx, "u1", "wf", "outro", &consulta)
	assert.ErrorIs(t, err, store.ErrNotFound)
}
