// Command dispatch executa uma rodada do dispatcher e sai. Serve para agendadores
// externos (cron do sistema, Cloud Scheduler + Cloud Run Job) que não chamam HTTP.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"clinica-lembretes/internal/bootstrap"
	"clinica-lembretes/internal/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("❌ Erro config: %v", err)
	}
	if err := cfg.ValidateStore(); err != nil {
		log.Fatalf("❌ Configuração inválida: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps, err := bootstrap.Open(ctx, cfg, false)
	if err != nil {
		log.Fatalf("❌ Erro ao inicializar dependências: %v", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Minute)
	res, err := deps.Dispatcher.Run(ctx, time.Now())
	cancel()
	deps.Close()

	if err != nil {
		log.Printf("❌ Erro no dispatcher: %v", err)
		os.Exit(1)
	}

	if res.Processadas == 0 {
		log.Println("Nenhuma mensagem para enviar.")
		return
	}
	log.Printf("✅ %d processada(s): %d enviada(s), %d falha(s)", res.Processadas, res.Enviadas, res.Falhas)
}
