package alerts

import (
	"context"
	"errors"
	"testing"

	"clinica-lembretes/internal/dispatcher"
	"clinica-lembretes/internal/email"
	"clinica-lembretes/internal/push"
	"clinica-lembretes/internal/store"
	"clinica-lembretes/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEmail struct {
	to     string
	linhas []email.LinhaFalha
	err    error
}

func (f *fakeEmail) SendFailureDigest(to, _ string, linhas []email.LinhaFalha) error {
	f.to = to
	f.linhas = linhas
	return f.err
}

type fakePush struct {
	token string
	total int
	err   error
}

func (f *fakePush) SendFailureNotification(_ context.Context, token, _ string, falhas int) (*push.AlertResult, error) {
	f.token = token
	f.total = falhas
	return &push.AlertResult{Success: f.err == nil}, f.err
}

func falhasDe(patients ...string) []dispatcher.Falha {
	var out []dispatcher.Falha
	for _, p := range patients {
		out = append(out, dispatcher.Falha{TenantID: "u1", PatientID: p, TemplateID: "aniversario", Motivo: "Paciente não encontrado"})
	}
	return out
}

func TestNotifyFailuresBothChannels(t *testing.T) {
	s := store.NewMemoryStore()
	s.PutClinica(models.Clinica{ID: "u1", NomeClinica: "Clínica", Email: "c@example.com", DeviceToken: "tok"})
	s.PutPaciente("u1", models.Paciente{ID: "a", Nome: "Ana"})
	e, p := &fakeEmail{}, &fakePush{}

	err := NewNotifier(s, e, p).NotifyFailures(context.Background(), "u1", falhasDe("a", "sumido"))
	require.NoError(t, err)

	assert.Equal(t, "c@example.com", e.to)
	require.Len(t, e.linhas, 2)
	assert.Equal(t, "Ana", e.linhas[0].Paciente)
	assert.Equal(t, "sumido", e.linhas[1].Paciente)
	assert.Equal(t, "tok", p.token)
	assert.Equal(t, 2, p.total)
}

func TestNotifyFailuresSkipsMissingContacts(t *testing.T) {
	s := store.NewMemoryStore()
	s.PutClinica(models.Clinica{ID: "u1"})
	e, p := &fakeEmail{}, &fakePush{}

	require.NoError(t, NewNotifier(s, e, p).NotifyFailures(context.Background(), "u1", falhasDe("a")))
	assert.Empty(t, e.to)
	assert.Empty(t, p.token)
}

func TestNotifyFailuresJoinsErrors(t *testing.T) {
	s := store.NewMemoryStore()
	s.PutClinica(models.Clinica{ID: "u1", Email: "c@example.com", DeviceToken: "tok"})
	e := &fakeEmail{err: errors.New("smtp")}
	p := &fakePush{err: errors.New("fcm")}

	err := NewNotifier(s, e, p).NotifyFailures(context.Background(), "u1", falhasDe("a"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "smtp")
	assert.Contains(t, err.Error(), "fcm")
}

func TestNotifyFailuresDisabled(t *testing.T) {
	n := NewNotifier(store.NewMemoryStore(), nil, nil)
	assert.False(t, n.Enabled())
	assert.NoError(t, n.NotifyFailures(context.Background(), "u1", falhasDe("a")))
}

func TestNotifyFailuresUnknownClinic(t *testing.T) {
	err := NewNotifier(store.NewMemoryStore(), &fakeEmail{}, nil).NotifyFailures(context.Background(), "u9", falhasDe("a"))
	assert.ErrorIs(t, err, store.ErrNotFound)
}
