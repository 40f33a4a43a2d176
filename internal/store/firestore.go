package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"clinica-lembretes/pkg/models"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	colMensagens = "scheduledMessages"
	colUsers     = "users"
	colPacientes = "patients"
	colWorkflows = "workflows"
	colTemplates = "templates"

	// limite de escritas de uma transação do Firestore
	maxEscritasTransacao = 500
)

// FirestoreStore usa a coleção plana scheduledMessages para a fila e as
// subcoleções users/{uid}/... para os dados da clínica.
type FirestoreStore struct {
	client *firestore.Client
}

func NewFirestoreStore(client *firestore.Client) *FirestoreStore {
	return &FirestoreStore{client: client}
}

func (s *FirestoreStore) user(tenantID string) *firestore.DocumentRef {
	return s.client.Collection(colUsers).Doc(tenantID)
}

func isNotFound(err error) bool {
	return status.Code(err) == codes.NotFound
}

func (s *FirestoreStore) get(ctx context.Context, ref *firestore.DocumentRef, what string, dst interface{}) error {
	snap, err := ref.Get(ctx)
	if err != nil {
		if isNotFound(err) {
			return fmt.Errorf("%s %s: %w", what, ref.ID, ErrNotFound)
		}
		return fmt.Errorf("erro ao buscar %s %s: %w", what, ref.ID, err)
	}
	if err := snap.DataTo(dst); err != nil {
		return fmt.Errorf("erro ao decodificar %s %s: %w", what, ref.ID, err)
	}
	return nil
}

func (s *FirestoreStore) GetWorkflow(ctx context.Context, tenantID, workflowID string) (*models.Workflow, error) {
	var doc models.WorkflowDoc
	if err := s.get(ctx, s.user(tenantID).Collection(colWorkflows).Doc(workflowID), "workflow", &doc); err != nil {
		return nil, err
	}
	return models.WorkflowFromDoc(workflowID, doc)
}

func (s *FirestoreStore) GetPaciente(ctx context.Context, tenantID, patientID string) (*models.Paciente, error) {
	var p models.Paciente
	if err := s.get(ctx, s.user(tenantID).Collection(colPacientes).Doc(patientID), "paciente", &p); err != nil {
		return nil, err
	}
	p.ID = patientID
	return &p, nil
}

func (s *FirestoreStore) GetClinica(ctx context.Context, tenantID string) (*models.Clinica, error) {
	var c models.Clinica
	if err := s.get(ctx, s.user(tenantID), "clinica", &c); err != nil {
		return nil, err
	}
	c.ID = tenantID
	return &c, nil
}

func (s *FirestoreStore) GetTemplatePersonalizado(ctx context.Context, tenantID, templateID string) (*models.TemplatePersonalizado, error) {
	var t models.TemplatePersonalizado
	if err := s.get(ctx, s.user(tenantID).Collection(colTemplates).Doc(templateID), "template", &t); err != nil {
		return nil, err
	}
	t.ID = templateID
	return &t, nil
}

// CreatePending lê as mensagens pendentes do workflow e grava as novas na
// mesma transação, então duas chamadas concorrentes não passam juntas pela
// checagem de duplicidade.
func (s *FirestoreStore) CreatePending(ctx context.Context, tenantID, workflowID string, planos []PlanoPaciente) (*ResultadoCriacao, error) {
	var res *ResultadoCriacao
	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		res = &ResultadoCriacao{}

		q := s.client.Collection(colMensagens).
			Where("userId", "==", tenantID).
			Where("workflowId", "==", workflowID).
			Where("status", "==", string(models.StatusAgendado))
		docs, err := tx.Documents(q).GetAll()
		if err != nil {
			return fmt.Errorf("erro ao consultar mensagens pendentes: %w", err)
		}

		pendentes := make(map[string]bool, len(docs))
		for _, d := range docs {
			if pid, err := d.DataAt("patientId"); err == nil {
				if v, ok := pid.(string); ok {
					pendentes[v] = true
				}
			}
		}

		for _, plano := range planos {
			if pendentes[plano.PatientID] {
				res.Duplicados = append(res.Duplicados, plano.PatientID)
				continue
			}
			if len(res.Criadas)+len(plano.Mensagens) > maxEscritasTransacao {
				return fmt.Errorf("lote excede %d mensagens por transação", maxEscritasTransacao)
			}
			for _, m := range plano.Mensagens {
				if m.ID == "" {
					m.ID = uuid.NewString()
				}
				if err := tx.Create(s.client.Collection(colMensagens).Doc(m.ID), m); err != nil {
					return fmt.Errorf("erro ao gravar mensagem %s: %w", m.ID, err)
				}
				res.Criadas = append(res.Criadas, m)
			}
			pendentes[plano.PatientID] = true
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (s *FirestoreStore) collect(iter *firestore.DocumentIterator) ([]models.MensagemAgendada, error) {
	defer iter.Stop()
	var out []models.MensagemAgendada
	for {
		doc, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, err
		}
		var m models.MensagemAgendada
		if err := doc.DataTo(&m); err != nil {
			return nil, fmt.Errorf("erro ao decodificar mensagem %s: %w", doc.Ref.ID, err)
		}
		m.ID = doc.Ref.ID
		out = append(out, m)
	}
	return out, nil
}

func (s *FirestoreStore) ListDue(ctx context.Context, now time.Time) ([]models.MensagemAgendada, error) {
	iter := s.client.Collection(colMensagens).
		Where("status", "==", string(models.StatusAgendado)).
		Where("scheduledTime", "<=", now).
		Documents(ctx)
	msgs, err := s.collect(iter)
	if err != nil {
		return nil, fmt.Errorf("failed to query scheduled messages: %w", err)
	}
	return msgs, nil
}

func (s *FirestoreStore) transition(ctx context.Context, id string, next models.StatusMensagem, updates []firestore.Update) error {
	ref := s.client.Collection(colMensagens).Doc(id)
	return s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if err != nil {
			if isNotFound(err) {
				return fmt.Errorf("mensagem %s: %w", id, ErrNotFound)
			}
			return err
		}
		raw, err := snap.DataAt("status")
		if err != nil {
			return fmt.Errorf("mensagem %s sem status: %w", id, err)
		}
		atual, _ := raw.(string)
		if !models.StatusMensagem(atual).CanTransitionTo(next) {
			return fmt.Errorf("mensagem %s %s -> %s: %w", id, atual, next, ErrInvalidTransition)
		}
		return tx.Update(ref, append(updates, firestore.Update{Path: "status", Value: string(next)}))
	})
}

func (s *FirestoreStore) MarkSent(ctx context.Context, messageID string, sentAt time.Time) error {
	return s.transition(ctx, messageID, models.StatusEnviado, []firestore.Update{
		{Path: "sentAt", Value: sentAt},
	})
}

func (s *FirestoreStore) MarkFailed(ctx context.Context, messageID, reason string) error {
	return s.transition(ctx, messageID, models.StatusFalhou, []firestore.Update{
		{Path: "error", Value: reason},
	})
}

func (s *FirestoreStore) Cancel(ctx context.Context, messageID string) error {
	return s.transition(ctx, messageID, models.StatusCancelado, nil)
}

func (s *FirestoreStore) ListMessages(ctx context.Context, tenantID string, filtro FiltroMensagens) ([]models.MensagemAgendada, error) {
	q := s.client.Collection(colMensagens).Where("userId", "==", tenantID)
	if filtro.Status != nil {
		q = q.Where("status", "==", string(*filtro.Status))
	}
	q = q.OrderBy("scheduledTime", firestore.Desc)
	if filtro.Limit > 0 {
		q = q.Limit(filtro.Limit)
	}
	msgs, err := s.collect(q.Documents(ctx))
	if err != nil {
		return nil, fmt.Errorf("erro ao listar mensagens: %w", err)
	}
	return msgs, nil
}

func (s *FirestoreStore) GetMessage(ctx context.Context, messageID string) (*models.MensagemAgendada, error) {
	var m models.MensagemAgendada
	if err := s.get(ctx, s.client.Collection(colMensagens).Doc(messageID), "mensagem", &m); err != nil {
		return nil, err
	}
	m.ID = messageID
	return &m, nil
}

func (s *FirestoreStore) Ping(ctx context.Context) error {
	iter := s.client.Collection(colMensagens).Limit(1).Documents(ctx)
	defer iter.Stop()
	if _, err := iter.Next(); err != nil && !errors.Is(err, iterator.Done) {
		return err
	}
	return nil
}

// Close não fecha o cliente: ele pertence ao firebaseapp.App.
func (s *FirestoreStore) Close() error {
	return nil
}
