package email

import (
	"fmt"
	"log"
	"time"
)

// SendFailureDigest envia à clínica a lista de mensagens que falharam numa execução.
func (s *EmailService) SendFailureDigest(to, nomeClinica string, linhas []LinhaFalha) error {
	if to == "" {
		return fmt.Errorf("email de destino vazio")
	}
	subject := fmt.Sprintf("⚠️ %d mensagem(ns) de WhatsApp não enviada(s)", len(linhas))
	htmlBody := FailureDigestTemplate(nomeClinica, linhas, time.Now())

	if err := s.SendEmail(to, subject, htmlBody); err != nil {
		log.Printf("❌ Erro ao enviar resumo de falhas: %v", err)
		return err
	}

	log.Printf("📧 Resumo de falhas enviado para: %s", to)
	return nil
}
