// Package alerts avisa a clínica, por email e push, quando mensagens falham.
package alerts

import (
	"context"
	"errors"
	"fmt"
	"log"

	"clinica-lembretes/internal/dispatcher"
	"clinica-lembretes/internal/email"
	"clinica-lembretes/internal/push"
	"clinica-lembretes/internal/store"
)

type EmailSender interface {
	SendFailureDigest(to, nomeClinica string, linhas []email.LinhaFalha) error
}

type PushSender interface {
	SendFailureNotification(ctx context.Context, deviceToken, nomeClinica string, falhas int) (*push.AlertResult, error)
}

type Notifier struct {
	store store.Store
	email EmailSender
	push  PushSender
}

var _ dispatcher.FailureNotifier = (*Notifier)(nil)

// NewNotifier aceita canais nil; um canal nil fica desligado.
func NewNotifier(s store.Store, emailSender EmailSender, pushSender PushSender) *Notifier {
	return &Notifier{store: s, email: emailSender, push: pushSender}
}

func (n *Notifier) Enabled() bool {
	return n.email != nil || n.push != nil
}

func (n *Notifier) NotifyFailures(ctx context.Context, tenantID string, falhas []dispatcher.Falha) error {
	if len(falhas) == 0 || !n.Enabled() {
		return nil
	}

	clinica, err := n.store.GetClinica(ctx, tenantID)
	if err != nil {
		return fmt.Errorf("erro ao carregar clínica %s: %w", tenantID, err)
	}

	var errs []error

	if n.email != nil && clinica.Email != "" {
		if err := n.email.SendFailureDigest(clinica.Email, clinica.NomeClinica, n.linhas(ctx, tenantID, falhas)); err != nil {
			errs = append(errs, err)
		}
	}

	if n.push != nil && clinica.DeviceToken != "" {
		if _, err := n.push.SendFailureNotification(ctx, clinica.DeviceToken, clinica.NomeClinica, len(falhas)); err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) == 0 {
		log.Printf("✅ Clínica %s avisada sobre %d falha(s)", tenantID, len(falhas))
	}
	return errors.Join(errs...)
}

func (n *Notifier) linhas(ctx context.Context, tenantID string, falhas []dispatcher.Falha) []email.LinhaFalha {
	out := make([]email.LinhaFalha, 0, len(falhas))
	for _, f := range falhas {
		nome := f.PatientID
		if p, err := n.store.GetPaciente(ctx, tenantID, f.PatientID); err == nil && p.Nome != "" {
			nome = p.Nome
		}
		out = append(out, email.LinhaFalha{Paciente: nome, Template: f.TemplateID, Motivo: f.Motivo})
	}
	return out
}
