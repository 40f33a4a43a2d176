package scheduler

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"clinica-lembretes/internal/dispatcher"
)

// Runner é o que o scheduler dispara a cada tick.
type Runner interface {
	Run(ctx context.Context, now time.Time) (*dispatcher.Resultado, error)
}

// Scheduler dispara o dispatcher em intervalo fixo dentro do processo, como
// alternativa ao cron externo em GET /api/cron.
type Scheduler struct {
	runner   Runner
	interval time.Duration
	timeout  time.Duration
	now      func() time.Time

	running  atomic.Bool
	stopOnce sync.Once
	stopChan chan struct{}
	wg       sync.WaitGroup
}

func NewScheduler(runner Runner, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Scheduler{
		runner:   runner,
		interval: interval,
		timeout:  5 * time.Minute,
		now:      time.Now,
		stopChan: make(chan struct{}),
	}
}

// Start bloqueia até ctx ser cancelado ou Stop ser chamado.
func (s *Scheduler) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	log.Printf("⏰ Scheduler iniciado (dispara envios a cada %v)", s.interval)

	for {
		select {
		case <-ctx.Done():
			s.wg.Wait()
			return
		case <-s.stopChan:
			s.wg.Wait()
			return
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() { close(s.stopChan) })
}

func (s *Scheduler) stopped() bool {
	select {
	case <-s.stopChan:
		return true
	default:
		return false
	}
}

// Tick dispara uma execução em background. Se a anterior ainda estiver
// rodando, ou se o scheduler já foi parado, o tick é ignorado e Tick devolve false.
// A execução não é cancelada junto com ctx: um encerramento espera os envios
// em andamento, limitados pelo timeout.
func (s *Scheduler) Tick(ctx context.Context) bool {
	if ctx.Err() != nil || s.stopped() {
		return false
	}
	if !s.running.CompareAndSwap(false, true) {
		log.Println("⚠️  Execução anterior do dispatcher ainda em andamento, tick ignorado")
		return false
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.running.Store(false)

		runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
		defer cancel()

		start := time.Now()
		res, err := s.runner.Run(runCtx, s.now())
		if err != nil {
			log.Printf("❌ Erro no dispatcher agendado: %v", err)
			return
		}
		if res.Processadas > 0 {
			log.Printf("✅ Dispatcher agendado: %d processada(s) em %v", res.Processadas, time.Since(start))
		}
	}()
	return true
}

// Wait espera a execução em andamento terminar. Não deve ser chamado em
// paralelo com Start; quem usa Start espera o próprio Start retornar.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}
