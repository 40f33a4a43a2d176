package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"clinica-lembretes/internal/store"
	"clinica-lembretes/pkg/models"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

const mensagemColumns = `id, user_id, patient_id, template_id, workflow_id, etapa, scheduled_time, status, error, created_at, sent_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanMensagem(row rowScanner) (models.MensagemAgendada, error) {
	var m models.MensagemAgendada
	var status string
	var sentAt sql.NullTime
	err := row.Scan(
		&m.ID, &m.UserID, &m.PatientID, &m.TemplateID, &m.WorkflowID, &m.Etapa,
		&m.ScheduledTime, &status, &m.Error, &m.CreatedAt, &sentAt,
	)
	if err != nil {
		return m, err
	}
	m.Status = models.StatusMensagem(status)
	if sentAt.Valid {
		m.SentAt = &sentAt.Time
	}
	return m, nil
}

func (db *DB) GetWorkflow(ctx context.Context, tenantID, workflowID string) (*models.Workflow, error) {
	query := `
		SELECT id, titulo, ativo, pacientes, etapas
		FROM workflows
		WHERE user_id = $1 AND id = $2
	`

	var wf models.Workflow
	var etapas []byte
	err := db.conn.QueryRowContext(ctx, query, tenantID, workflowID).Scan(
		&wf.ID, &wf.Titulo, &wf.Ativo, pq.Array(&wf.Pacientes), &etapas,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("workflow %s: %w", workflowID, store.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to query workflow: %w", err)
	}

	if err := json.Unmarshal(etapas, &wf.Etapas); err != nil {
		return nil, fmt.Errorf("workflow %s: etapas inválidas: %w", workflowID, err)
	}

	return &wf, nil
}

func (db *DB) GetPaciente(ctx context.Context, tenantID, patientID string) (*models.Paciente, error) {
	query := `
		SELECT id, nome, telefone, data_proxima_consulta, hora_proxima_consulta
		FROM pacientes
		WHERE user_id = $1 AND id = $2
	`

	var p models.Paciente
	err := db.conn.QueryRowContext(ctx, query, tenantID, patientID).Scan(
		&p.ID, &p.Nome, &p.Telefone, &p.DataProximaConsulta, &p.HoraProximaConsulta,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("paciente %s: %w", patientID, store.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to query paciente: %w", err)
	}

	return &p, nil
}

func (db *DB) GetClinica(ctx context.Context, tenantID string) (*models.Clinica, error) {
	query := `
		SELECT id, nome_clinica, email, device_token, whatsapp_phone_number_id, whatsapp_access_token
		FROM clinicas
		WHERE id = $1
	`

	var c models.Clinica
	err := db.conn.QueryRowContext(ctx, query, tenantID).Scan(
		&c.ID, &c.NomeClinica, &c.Email, &c.DeviceToken, &c.WhatsAppPhoneNumberID, &c.WhatsAppAccessToken,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("clinica %s: %w", tenantID, store.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to query clinica: %w", err)
	}

	return &c, nil
}

func (db *DB) GetTemplatePersonalizado(ctx context.Context, tenantID, templateID string) (*models.TemplatePersonalizado, error) {
	query := `
		SELECT id, titulo, conteudo, padrao
		FROM templates_personalizados
		WHERE user_id = $1 AND id = $2
	`

	var t models.TemplatePersonalizado
	err := db.conn.QueryRowContext(ctx, query, tenantID, templateID).Scan(&t.ID, &t.Titulo, &t.Conteudo, &t.Padrao)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("template %s: %w", templateID, store.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to query template: %w", err)
	}

	return &t, nil
}

// CreatePending serializa agendamentos do mesmo workflow com um advisory lock
// de transação; o índice único parcial uq_mensagens_pendentes é a última barreira.
func (db *DB) CreatePending(ctx context.Context, tenantID, workflowID string, planos []store.PlanoPaciente) (*store.ResultadoCriacao, error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, tenantID+":"+workflowID); err != nil {
		return nil, fmt.Errorf("failed to lock workflow: %w", err)
	}

	rows, err := tx.QueryContext(ctx, `
		SELECT DISTINCT patient_id
		FROM mensagens_agendadas
		WHERE user_id = $1 AND workflow_id = $2 AND status = 'Agendado'
	`, tenantID, workflowID)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending messages: %w", err)
	}
	pendentes := make(map[string]bool)
	for rows.Next() {
		var pid string
		if err := rows.Scan(&pid); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan: %w", err)
		}
		pendentes[pid] = true
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	insert := `
		INSERT INTO mensagens_agendadas (` + mensagemColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	res := &store.ResultadoCriacao{}
	for _, plano := range planos {
		if pendentes[plano.PatientID] {
			res.Duplicados = append(res.Duplicados, plano.PatientID)
			continue
		}
		for _, m := range plano.Mensagens {
			if m.ID == "" {
				m.ID = uuid.NewString()
			}
			_, err := tx.ExecContext(ctx, insert,
				m.ID, m.UserID, m.PatientID, m.TemplateID, m.WorkflowID, m.Etapa,
				m.ScheduledTime, string(m.Status), m.Error, m.CreatedAt, m.SentAt,
			)
			if err != nil {
				var pqErr *pq.Error
				if errors.As(err, &pqErr) && pqErr.Code == "23505" {
					return nil, fmt.Errorf("mensagem pendente duplicada para paciente %s: %w", m.PatientID, err)
				}
				return nil, fmt.Errorf("failed to insert mensagem: %w", err)
			}
			res.Criadas = append(res.Criadas, m)
		}
		pendentes[plano.PatientID] = true
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit: %w", err)
	}
	return res, nil
}

func (db *DB) queryMensagens(ctx context.Context, query string, args ...interface{}) ([]models.MensagemAgendada, error) {
	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.MensagemAgendada
	for rows.Next() {
		m, err := scanMensagem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (db *DB) ListDue(ctx context.Context, now time.Time) ([]models.MensagemAgendada, error) {
	query := `
		SELECT ` + mensagemColumns + `
		FROM mensagens_agendadas
		WHERE status = 'Agendado'
		  AND scheduled_time <= $1
	`

	msgs, err := db.queryMensagens(ctx, query, now)
	if err != nil {
		return nil, fmt.Errorf("failed to query mensagens_agendadas: %w", err)
	}
	return msgs, nil
}

func (db *DB) updateStatus(ctx context.Context, id string, next models.StatusMensagem, query string, args ...interface{}) error {
	result, err := db.conn.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected > 0 {
		return nil
	}

	var atual string
	err = db.conn.QueryRowContext(ctx, `SELECT status FROM mensagens_agendadas WHERE id = $1`, id).Scan(&atual)
	if err == sql.ErrNoRows {
		return fmt.Errorf("mensagem %s: %w", id, store.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to query status: %w", err)
	}
	return fmt.Errorf("mensagem %s %s -> %s: %w", id, atual, next, store.ErrInvalidTransition)
}

func (db *DB) MarkSent(ctx context.Context, messageID string, sentAt time.Time) error {
	query := `
		UPDATE mensagens_agendadas
		SET status = 'Enviado', sent_at = $2, error = ''
		WHERE id = $1 AND status = 'Agendado'
	`
	return db.updateStatus(ctx, messageID, models.StatusEnviado, query, messageID, sentAt)
}

func (db *DB) MarkFailed(ctx context.Context, messageID, reason string) error {
	query := `
		UPDATE mensagens_agendadas
		SET status = 'Falhou', error = $2
		WHERE id = $1 AND status = 'Agendado'
	`
	return db.updateStatus(ctx, messageID, models.StatusFalhou, query, messageID, reason)
}

func (db *DB) Cancel(ctx context.Context, messageID string) error {
	query := `
		UPDATE mensagens_agendadas
		SET status = 'Cancelado'
		WHERE id = $1 AND status = 'Agendado'
	`
	return db.updateStatus(ctx, messageID, models.StatusCancelado, query, messageID)
}

func (db *DB) ListMessages(ctx context.Context, tenantID string, filtro store.FiltroMensagens) ([]models.MensagemAgendada, error) {
	var sb strings.Builder
	args := []interface{}{tenantID}

	sb.WriteString(`SELECT ` + mensagemColumns + ` FROM mensagens_agendadas WHERE user_id = $1`)
	if filtro.Status != nil {
		args = append(args, string(*filtro.Status))
		sb.WriteString(fmt.Sprintf(" AND status = $%d", len(args)))
	}
	sb.WriteString(" ORDER BY scheduled_time DESC")
	if filtro.Limit > 0 {
		args = append(args, filtro.Limit)
		sb.WriteString(fmt.Sprintf(" LIMIT $%d", len(args)))
	}

	msgs, err := db.queryMensagens(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list mensagens: %w", err)
	}
	return msgs, nil
}

func (db *DB) GetMessage(ctx context.Context, messageID string) (*models.MensagemAgendada, error) {
	row := db.conn.QueryRowContext(ctx, `SELECT `+mensagemColumns+` FROM mensagens_agendadas WHERE id = $1`, messageID)
	m, err := scanMensagem(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("mensagem %s: %w", messageID, store.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to query mensagem: %w", err)
	}
	return &m, nil
}

var _ store.Store = (*DB)(nil)
