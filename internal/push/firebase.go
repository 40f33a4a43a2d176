package push

import (
	"context"
	"fmt"
	"log"
	"time"

	"firebase.google.com/go/v4/messaging"
)

// messageSender é o subconjunto de *messaging.Client usado aqui.
type messageSender interface {
	Send(ctx context.Context, message *messaging.Message) (string, error)
}

type FirebaseService struct {
	client messageSender
}

type AlertResult struct {
	Success   bool
	MessageID string
	Error     error
	SentAt    time.Time
}

// NewFirebaseService recebe o cliente FCM já criado pelo firebaseapp.
func NewFirebaseService(client *messaging.Client) *FirebaseService {
	return &FirebaseService{client: client}
}

func newWithSender(s messageSender) *FirebaseService {
	return &FirebaseService{client: s}
}

// SendFailureNotification avisa o painel da clínica que mensagens agendadas falharam.
func (s *FirebaseService) SendFailureNotification(ctx context.Context, deviceToken, nomeClinica string, falhas int) (*AlertResult, error) {
	if deviceToken == "" {
		err := fmt.Errorf("device token is empty")
		return &AlertResult{Error: err, SentAt: time.Now()}, err
	}

	body := fmt.Sprintf("%d mensagem agendada não foi enviada. Confira a fila de mensagens.", falhas)
	if falhas != 1 {
		body = fmt.Sprintf("%d mensagens agendadas não foram enviadas. Confira a fila de mensagens.", falhas)
	}
	title := "⚠️ Falha no envio de WhatsApp"
	if nomeClinica != "" {
		title = fmt.Sprintf("⚠️ %s: falha no envio de WhatsApp", nomeClinica)
	}

	message := &messaging.Message{
		Token: deviceToken,
		Notification: &messaging.Notification{
			Title: title,
			Body:  body,
		},
		Data: map[string]string{
			"type":      "dispatch_failures",
			"count":     fmt.Sprintf("%d", falhas),
			"timestamp": fmt.Sprintf("%d", time.Now().Unix()),
		},
		Android: &messaging.AndroidConfig{
			Priority: "high",
			Notification: &messaging.AndroidNotification{
				Sound:        "default",
				Priority:     messaging.PriorityHigh,
				ChannelID:    "clinica_alertas",
				DefaultSound: true,
				Color:        "#FF0000",
			},
		},
	}

	response, err := s.client.Send(ctx, message)
	result := &AlertResult{
		Success:   err == nil,
		MessageID: response,
		Error:     err,
		SentAt:    time.Now(),
	}
	if err != nil {
		if IsInvalidTokenError(err) {
			log.Printf("⚠️  Device token inválido para %s", nomeClinica)
		}
		return result, fmt.Errorf("error sending failure push: %w", err)
	}

	log.Printf("📲 Push de falhas enviado (%d): %s", falhas, response)
	return result, nil
}

// IsInvalidTokenError verifica se o erro retornado pelo Firebase indica que o token é inválido
func IsInvalidTokenError(err error) bool {
	return messaging.IsRegistrationTokenNotRegistered(err) || messaging.IsSenderIDMismatch(err)
}
