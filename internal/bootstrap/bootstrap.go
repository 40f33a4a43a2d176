// Package bootstrap monta as dependências a partir da configuração. É usado
// pelo servidor HTTP e pelo comando de execução única do dispatcher.
package bootstrap

import (
	"context"
	"fmt"
	"log"

	"clinica-lembretes/internal/alerts"
	"clinica-lembretes/internal/config"
	"clinica-lembretes/internal/database"
	"clinica-lembretes/internal/dispatcher"
	"clinica-lembretes/internal/email"
	"clinica-lembretes/internal/firebaseapp"
	"clinica-lembretes/internal/middleware"
	"clinica-lembretes/internal/push"
	"clinica-lembretes/internal/schedule"
	"clinica-lembretes/internal/store"
	"clinica-lembretes/internal/whatsapp"
)

type Deps struct {
	Config     *config.Config
	Store      store.Store
	Firebase   *firebaseapp.App
	Dispatcher *dispatcher.Dispatcher
	Agenda     *schedule.Service
}

// needsFirebase indica se alguma parte configurada usa o Firebase Admin SDK.
func needsFirebase(cfg *config.Config, withAuth bool) bool {
	return cfg.StoreBackend == config.BackendFirestore ||
		cfg.NotifyFailuresPush ||
		(withAuth && !cfg.AuthDisabled)
}

// Open cria store, cliente WhatsApp, avisos de falha e dispatcher. withAuth
// indica que o chamador vai precisar de TenantAuth (servidor HTTP).
func Open(ctx context.Context, cfg *config.Config, withAuth bool) (*Deps, error) {
	d := &Deps{Config: cfg}

	if needsFirebase(cfg, withAuth) {
		app, err := firebaseapp.New(ctx, cfg.FirebaseCredentialsPath, cfg.FirebaseProjectID)
		if err != nil {
			return nil, err
		}
		d.Firebase = app
	}

	s, err := openStore(ctx, cfg, d.Firebase)
	if err != nil {
		d.Close()
		return nil, err
	}
	d.Store = s

	sender := whatsapp.NewCloudClient(whatsapp.ConfigFrom(cfg))
	d.Dispatcher = dispatcher.New(s, sender, cfg.DispatchConcurrency)

	notifier := newNotifier(ctx, cfg, s, d.Firebase)
	if notifier.Enabled() {
		d.Dispatcher.WithNotifier(notifier)
	}

	d.Agenda = schedule.NewService(s, cfg.Location())
	return d, nil
}

func openStore(ctx context.Context, cfg *config.Config, app *firebaseapp.App) (store.Store, error) {
	switch cfg.StoreBackend {
	case config.BackendFirestore:
		client, err := app.Firestore(ctx)
		if err != nil {
			return nil, err
		}
		log.Println("✅ Store: Firestore")
		return store.NewFirestoreStore(client), nil

	case config.BackendPostgres:
		db, err := database.NewDB(cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if err := db.Migrate(ctx); err != nil {
			db.Close()
			return nil, err
		}
		log.Println("✅ Store: PostgreSQL")
		return db, nil

	case config.BackendMemory:
		log.Println("⚠️  Store: memória (dados se perdem ao reiniciar)")
		return store.NewMemoryStore(), nil

	default:
		return nil, fmt.Errorf("unknown STORE_BACKEND: %s", cfg.StoreBackend)
	}
}

func newNotifier(ctx context.Context, cfg *config.Config, s store.Store, app *firebaseapp.App) *alerts.Notifier {
	var emailSender alerts.EmailSender
	if cfg.NotifyFailuresEmail {
		svc, err := email.NewEmailService(cfg)
		if err != nil {
			log.Printf("⚠️ Email service not configured: %v", err)
		} else {
			emailSender = svc
			log.Println("✅ Email service initialized")
		}
	}

	var pushSender alerts.PushSender
	if cfg.NotifyFailuresPush && app != nil {
		client, err := app.Messaging(ctx)
		if err != nil {
			log.Printf("⚠️ Push de falhas desligado: %v", err)
		} else {
			pushSender = push.NewFirebaseService(client)
			log.Println("✅ Push de falhas habilitado")
		}
	}

	return alerts.NewNotifier(s, emailSender, pushSender)
}

// TenantAuth devolve o middleware de autenticação das clínicas.
func (d *Deps) TenantAuth(ctx context.Context) (*middleware.TenantAuth, error) {
	if d.Config.AuthDisabled {
		log.Println("⚠️  AUTH_DISABLED: header X-User-ID é aceito sem verificação")
		return middleware.NewInsecureTenantAuth(), nil
	}
	if d.Firebase == nil {
		return nil, fmt.Errorf("firebase app not initialized")
	}
	client, err := d.Firebase.Auth(ctx)
	if err != nil {
		return nil, err
	}
	return middleware.NewTenantAuth(client), nil
}

func (d *Deps) Close() {
	if d.Store != nil {
		if err := d.Store.Close(); err != nil {
			log.Printf("⚠️  Erro ao fechar store: %v", err)
		}
	}
	if d.Firebase != nil {
		if err := d.Firebase.Close(); err != nil {
			log.Printf("⚠️  Erro ao fechar Firebase: %v", err)
		}
	}
}
