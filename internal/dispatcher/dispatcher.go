// Package dispatcher envia as mensagens agendadas que já venceram.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"clinica-lembretes/internal/store"
	"clinica-lembretes/internal/templates"
	"clinica-lembretes/internal/whatsapp"
	"clinica-lembretes/pkg/models"

	"golang.org/x/sync/errgroup"
)

const (
	MotivoPacienteNaoEncontrado = "Paciente não encontrado"
	MotivoPacienteSemTelefone   = "Paciente sem telefone"
	MotivoTemplateNaoEncontrado = "Template não encontrado"
)

// Resultado conta os registros considerados, não só os que deram certo.
type Resultado struct {
	Processadas int `json:"processadas"`
	Enviadas    int `json:"enviadas"`
	Falhas      int `json:"falhas"`
}

// Falha descreve uma mensagem marcada como Falhou nesta execução.
type Falha struct {
	MessageID  string
	TenantID   string
	PatientID  string
	TemplateID string
	Motivo     string
}

// FailureNotifier recebe as falhas de uma execução agrupadas por clínica.
type FailureNotifier interface {
	NotifyFailures(ctx context.Context, tenantID string, falhas []Falha) error
}

type Dispatcher struct {
	store       store.Store
	resolver    *templates.Resolver
	sender      whatsapp.Sender
	concurrency int
	notifier    FailureNotifier
}

func New(s store.Store, sender whatsapp.Sender, concurrency int) *Dispatcher {
	if concurrency <= 0 {
		concurrency = 10
	}
	return &Dispatcher{
		store:       s,
		resolver:    templates.NewResolver(s),
		sender:      sender,
		concurrency: concurrency,
	}
}

func (d *Dispatcher) WithNotifier(n FailureNotifier) *Dispatcher {
	d.notifier = n
	return d
}

// Run processa todas as mensagens Agendado com scheduledTime <= now. O erro
// retornado é só o da consulta; falhas de envio ficam registradas em cada mensagem.
func (d *Dispatcher) Run(ctx context.Context, now time.Time) (*Resultado, error) {
	due, err := d.store.ListDue(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("erro ao buscar mensagens pendentes: %w", err)
	}

	res := &Resultado{Processadas: len(due)}
	if len(due) == 0 {
		return res, nil
	}

	log.Printf("📤 Dispatcher: %d mensagem(ns) para enviar", len(due))

	var (
		mu     sync.Mutex
		falhas = make(map[string][]Falha)
	)

	var g errgroup.Group
	g.SetLimit(d.concurrency)
	for _, m := range due {
		g.Go(func() error {
			motivo := d.process(ctx, m.UserID, m.PatientID, m.TemplateID)

			if motivo == "" {
				if err := d.store.MarkSent(ctx, m.ID, now); err != nil {
					log.Printf("❌ Mensagem %s enviada mas não marcada como Enviado: %v", m.ID, err)
				}
				mu.Lock()
				res.Enviadas++
				mu.Unlock()
				return nil
			}

			log.Printf("❌ Falha na mensagem %s (paciente %s, clínica %s): %s", m.ID, m.PatientID, m.UserID, motivo)
			if err := d.store.MarkFailed(ctx, m.ID, motivo); err != nil {
				log.Printf("❌ Erro ao marcar mensagem %s como Falhou: %v", m.ID, err)
			}

			mu.Lock()
			defer mu.Unlock()
			res.Falhas++
			falhas[m.UserID] = append(falhas[m.UserID], Falha{
				MessageID:  m.ID,
				TenantID:   m.UserID,
				PatientID:  m.PatientID,
				TemplateID: m.TemplateID,
				Motivo:     motivo,
			})
			return nil
		})
	}
	_ = g.Wait()

	log.Printf("✅ Dispatcher: %d processada(s), %d enviada(s), %d falha(s)", res.Processadas, res.Enviadas, res.Falhas)

	d.notify(ctx, falhas)
	return res, nil
}

// process envia uma mensagem e devolve o motivo da falha, ou "" se enviou.
func (d *Dispatcher) process(ctx context.Context, tenantID, patientID, templateRef string) string {
	paciente, err := d.store.GetPaciente(ctx, tenantID, patientID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return MotivoPacienteNaoEncontrado
		}
		return err.Error()
	}
	if paciente.Telefone == "" {
		return MotivoPacienteSemTelefone
	}

	clinica, err := d.store.GetClinica(ctx, tenantID)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			return err.Error()
		}
		log.Printf("⚠️  Clínica %s sem perfil, nome da clínica fica vazio", tenantID)
		clinica = &models.Clinica{ID: tenantID}
	}

	tpl, err := d.resolver.Resolve(ctx, templateRef, tenantID)
	if err != nil {
		if errors.Is(err, templates.ErrTemplateNotFound) {
			return fmt.Sprintf("%s: %s", MotivoTemplateNaoEncontrado, templateRef)
		}
		return err.Error()
	}

	tpl.Parameters = templates.Parametros(paciente, clinica)
	if err := d.sender.Send(ctx, clinica, paciente.Telefone, tpl.ProviderTemplateName, tpl.Parameters); err != nil {
		return err.Error()
	}
	return ""
}

func (d *Dispatcher) notify(ctx context.Context, falhas map[string][]Falha) {
	if d.notifier == nil {
		return
	}
	for tenantID, lista := range falhas {
		if err := d.notifier.NotifyFailures(ctx, tenantID, lista); err != nil {
			log.Printf("⚠️  Erro ao avisar clínica %s sobre %d falha(s): %v", tenantID, len(lista), err)
		}
	}
}
