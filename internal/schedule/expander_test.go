package schedule

import (
	"testing"
	"time"

	"clinica-lembretes/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr(t time.Time) *time.Time { return &t }

func TestSendTimeRelativo(t *testing.T) {
	consulta := time.Date(2024, 6, 10, 14, 0, 0, 0, time.UTC)

	cases := []struct {
		name string
		g    models.GatilhoRelativo
		want time.Time
	}{
		{"1 dia antes", models.GatilhoRelativo{Quantidade: 1, Unidade: models.UnidadeDias, Evento: models.EventoAntes}, time.Date(2024, 6, 9, 14, 0, 0, 0, time.UTC)},
		{"1 dia depois", models.GatilhoRelativo{Quantidade: 1, Unidade: models.UnidadeDias, Evento: models.EventoDepois}, time.Date(2024, 6, 11, 14, 0, 0, 0, time.UTC)},
		{"3 horas antes", models.GatilhoRelativo{Quantidade: 3, Unidade: models.UnidadeHoras, Evento: models.EventoAntes}, time.Date(2024, 6, 10, 11, 0, 0, 0, time.UTC)},
		{"2 semanas depois", models.GatilhoRelativo{Quantidade: 2, Unidade: models.UnidadeSemanas, Evento: models.EventoDepois}, time.Date(2024, 6, 24, 14, 0, 0, 0, time.UTC)},
		{"6 meses depois", models.GatilhoRelativo{Quantidade: 6, Unidade: models.UnidadeMeses, Evento: models.EventoDepois}, time.Date(2024, 12, 10, 14, 0, 0, 0, time.UTC)},
		{"1 mês antes", models.GatilhoRelativo{Quantidade: 1, Unidade: models.UnidadeMeses, Evento: models.EventoAntes}, time.Date(2024, 5, 10, 14, 0, 0, 0, time.UTC)},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := SendTime(tc.g, &consulta, time.UTC)
			require.NoError(t, err)
			assert.True(t, tc.want.Equal(got), "got %s want %s", got, tc.want)
		})
	}
}

func TestSendTimeDaysFollowCalendarInLocation(t *testing.T) {
	// Em fuso com horário de verão, "1 dia antes" mantém a hora local.
	// Nova York adianta o relógio às 02:00 de 2024-03-10.
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	consulta := time.Date(2024, 3, 10, 9, 0, 0, 0, loc)

	got, err := SendTime(models.GatilhoRelativo{Quantidade: 1, Unidade: models.UnidadeDias, Evento: models.EventoAntes}, &consulta, loc)
	require.NoError(t, err)
	assert.True(t, time.Date(2024, 3, 9, 9, 0, 0, 0, loc).Equal(got), "got %s", got.In(loc))
	assert.Equal(t, 9, got.In(loc).Hour())
	assert.Equal(t, 23*time.Hour, consulta.Sub(got))

	got, err = SendTime(models.GatilhoRelativo{Quantidade: 24, Unidade: models.UnidadeHoras, Evento: models.EventoAntes}, &consulta, loc)
	require.NoError(t, err)
	assert.True(t, time.Date(2024, 3, 9, 8, 0, 0, 0, loc).Equal(got), "got %s", got.In(loc))
	assert.Equal(t, 8, got.In(loc).Hour())
	assert.Equal(t, 24*time.Hour, consulta.Sub(got))
}

func TestSendTimeSemConsulta(t *testing.T) {
	_, err := SendTime(models.GatilhoRelativo{Quantidade: 1, Unidade: models.UnidadeDias, Evento: models.EventoAntes}, nil, time.UTC)
	assert.ErrorIs(t, err, ErrSemDataConsulta)

	zero := time.Time{}
	_, err = SendTime(models.GatilhoRelativo{Quantidade: 1, Unidade: models.UnidadeDias, Evento: models.EventoAntes}, &zero, time.UTC)
	assert.ErrorIs(t, err, ErrSemDataConsulta)
}

func TestSendTimeEspecificoIgnoresConsulta(t *testing.T) {
	em := time.Date(2024, 12, 24, 9, 0, 0, 0, time.UTC)
	g := models.GatilhoEspecifico{Em: em}

	a, err := SendTime(g, ptr(time.Date(2024, 7, 1, 10, 0, 0, 0, time.UTC)), time.UTC)
	require.NoError(t, err)
	b, err := SendTime(g, ptr(time.Date(2025, 1, 5, 16, 0, 0, 0, time.UTC)), time.UTC)
	require.NoError(t, err)
	c, err := SendTime(g, nil, time.UTC)
	require.NoError(t, err)

	assert.True(t, em.Equal(a))
	assert.True(t, em.Equal(b))
	assert.True(t, em.Equal(c))
}

func TestExpandSkipsRelativeStepsWithoutDate(t *testing.T) {
	em := time.Date(2024, 12, 24, 9, 0, 0, 0, time.UTC)
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	wf := &models.Workflow{
		ID:    "wf",
		Ativo: true,
		Etapas: []models.Etapa{
			{Template: "lembrete_consulta_24h", Gatilho: models.GatilhoRelativo{Quantidade: 24, Unidade: models.UnidadeHoras, Evento: models.EventoAntes}},
			{Template: "aniversario", Gatilho: models.GatilhoEspecifico{Em: em}},
		},
	}

	msgs, semData, err := Expand(wf, "u1", "p1", nil, now, time.UTC)
	require.NoError(t, err)
	assert.Equal(t, 1, semData)
	require.Len(t, msgs, 1)
	assert.Equal(t, "aniversario", msgs[0].TemplateID)
	assert.Equal(t, 1, msgs[0].Etapa)
	assert.Equal(t, models.StatusAgendado, msgs[0].Status)
	assert.Equal(t, "wf", msgs[0].WorkflowID)
	assert.True(t, now.Equal(msgs[0].CreatedAt))
}

func TestValidateWorkflow(t *testing.T) {
	etapa := models.Etapa{Template: "x", Gatilho: models.GatilhoRelativo{Quantidade: 1, Unidade: models.UnidadeDias, Evento: models.EventoAntes}}

	assert.NoError(t, ValidateWorkflow(&models.Workflow{ID: "wf", Ativo: true, Etapas: []models.Etapa{etapa}}))
	assert.ErrorIs(t, ValidateWorkflow(&models.Workflow{ID: "wf", Ativo: true}), ErrValidacao)
	assert.ErrorIs(t, ValidateWorkflow(&models.Workflow{ID: "wf", Ativo: false, Etapas: []models.Etapa{etapa}}), ErrValidacao)
	assert.ErrorIs(t, ValidateWorkflow(&models.Workflow{ID: "wf", Ativo: true, Etapas: []models.Etapa{{Template: "x"}}}), ErrValidacao)
	assert.ErrorIs(t, ValidateWorkflow(nil), ErrValidacao)
}
