package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"clinica-lembretes/internal/api"
	"clinica-lembretes/internal/bootstrap"
	"clinica-lembretes/internal/config"
	"clinica-lembretes/internal/scheduler"
)

var (
	serverLogs []string
	logsMutex  sync.RWMutex
)

const maxLogs = 100

type logWriter struct{}

func (lw logWriter) Write(p []byte) (n int, err error) {
	logsMutex.Lock()
	defer logsMutex.Unlock()

	msg := string(p)
	if len(msg) > 0 && msg[len(msg)-1] == '\n' {
		msg = msg[:len(msg)-1]
	}

	timestamp := time.Now().Format("15:04:05")
	logEntry := fmt.Sprintf("[%s] %s", timestamp, msg)

	serverLogs = append(serverLogs, logEntry)
	if len(serverLogs) > maxLogs {
		serverLogs = serverLogs[1:]
	}

	// Imprimir no console também
	fmt.Println(logEntry)

	return len(p), nil
}

func recentLogs() []string {
	logsMutex.RLock()
	defer logsMutex.RUnlock()
	out := make([]string, len(serverLogs))
	copy(out, serverLogs)
	return out
}

func main() {
	log.SetFlags(0)
	log.SetOutput(logWriter{})

	log.Println("🚀 Iniciando serviço de lembretes por WhatsApp...")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("❌ Erro config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("❌ Configuração inválida: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps, err := bootstrap.Open(ctx, cfg, true)
	if err != nil {
		log.Fatalf("❌ Erro ao inicializar dependências: %v", err)
	}
	defer deps.Close()

	tenantAuth, err := deps.TenantAuth(ctx)
	if err != nil {
		log.Fatalf("❌ Erro ao inicializar autenticação: %v", err)
	}

	var sch *scheduler.Scheduler
	schDone := make(chan struct{})
	if cfg.SchedulerEnabled {
		sch = scheduler.NewScheduler(deps.Dispatcher, time.Duration(cfg.SchedulerInterval)*time.Second)
		go func() {
			defer close(schDone)
			sch.Start(ctx)
		}()
		log.Println("✅ Scheduler iniciado")
	}

	srv := api.NewServer(api.Options{
		Store:      deps.Store,
		Agenda:     deps.Agenda,
		Cron:       deps.Dispatcher,
		CronSecret: cfg.CronSecret,
		TenantAuth: tenantAuth,
		Logs:       recentLogs,
	})

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("✅ Servidor pronto na porta %s (store: %s)", cfg.Port, cfg.StoreBackend)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("❌ Erro no servidor HTTP: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("🛑 Encerrando...")

	if sch != nil {
		// Start só retorna depois da execução em andamento terminar
		sch.Stop()
		<-schDone
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("⚠️  Erro ao encerrar servidor HTTP: %v", err)
	}

	log.Println("✅ Servidor encerrado")
}
