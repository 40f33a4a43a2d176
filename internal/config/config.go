package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
)

const (
	BackendFirestore = "firestore"
	BackendPostgres  = "postgres"
	BackendMemory    = "memory"
)

type Config struct {
	// Server
	Port        string
	Environment string

	// Cron
	CronSecret          string
	DispatchConcurrency int

	// Scheduler interno (alternativa ao cron externo)
	SchedulerEnabled  bool
	SchedulerInterval int

	// Storage
	StoreBackend string
	DatabaseURL  string

	// Firebase
	FirebaseCredentialsPath string
	FirebaseProjectID       string
	AuthDisabled            bool

	// Fuso das clínicas para datas de consulta e aritmética de calendário
	Timezone string

	// WhatsApp Cloud API (fallback quando a clínica não tem credenciais próprias)
	WhatsAppAPIURL        string
	WhatsAppAPIVersion    string
	WhatsAppPhoneNumberID string
	WhatsAppAccessToken   string
	WhatsAppLanguage      string

	// Avisos de falha de envio
	NotifyFailuresEmail bool
	NotifyFailuresPush  bool

	// SMTP Configuration
	SMTPHost      string
	SMTPPort      int
	SMTPUsername  string
	SMTPPassword  string
	SMTPFromName  string
	SMTPFromEmail string
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("ℹ️  Info: Ficheiro .env não encontrado ou não pôde ser carregado. Lendo variáveis de ambiente do sistema.")
	}

	return &Config{
		// Server
		Port:        getEnvWithDefault("PORT", "8080"),
		Environment: getEnvWithDefault("ENVIRONMENT", "development"),

		// Cron
		CronSecret:          os.Getenv("CRON_SECRET"),
		DispatchConcurrency: getEnvInt("DISPATCH_CONCURRENCY", 10),

		// Scheduler
		SchedulerEnabled:  getEnvBool("SCHEDULER_ENABLED", false),
		SchedulerInterval: getEnvInt("SCHEDULER_INTERVAL", 60),

		// Storage
		StoreBackend: getEnvWithDefault("STORE_BACKEND", BackendFirestore),
		DatabaseURL:  os.Getenv("DATABASE_URL"),

		// Firebase
		FirebaseCredentialsPath: os.Getenv("FIREBASE_CREDENTIALS_PATH"),
		FirebaseProjectID:       os.Getenv("FIREBASE_PROJECT_ID"),
		AuthDisabled:            getEnvBool("AUTH_DISABLED", false),

		Timezone: getEnvWithDefault("TIMEZONE", "America/Sao_Paulo"),

		// WhatsApp
		WhatsAppAPIURL:        getEnvWithDefault("WHATSAPP_API_URL", "https://graph.facebook.com"),
		WhatsAppAPIVersion:    getEnvWithDefault("WHATSAPP_API_VERSION", "v21.0"),
		WhatsAppPhoneNumberID: os.Getenv("WHATSAPP_PHONE_NUMBER_ID"),
		WhatsAppAccessToken:   os.Getenv("WHATSAPP_ACCESS_TOKEN"),
		WhatsAppLanguage:      getEnvWithDefault("WHATSAPP_LANGUAGE", "pt_BR"),

		// Alertas
		NotifyFailuresEmail: getEnvBool("NOTIFY_FAILURES_EMAIL", false),
		NotifyFailuresPush:  getEnvBool("NOTIFY_FAILURES_PUSH", false),

		// SMTP
		SMTPHost:      getEnvWithDefault("SMTP_HOST", "smtp.gmail.com"),
		SMTPPort:      getEnvInt("SMTP_PORT", 587),
		SMTPUsername:  os.Getenv("SMTP_USERNAME"),
		SMTPPassword:  os.Getenv("SMTP_PASSWORD"),
		SMTPFromName:  getEnvWithDefault("SMTP_FROM_NAME", "Lembretes da Clínica"),
		SMTPFromEmail: os.Getenv("SMTP_FROM_EMAIL"),
	}, nil
}

func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var intValue int
		if _, err := fmt.Sscanf(value, "%d", &intValue); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1" || value == "yes"
	}
	return defaultValue
}

// Location devolve o fuso configurado, caindo para UTC se o nome for inválido.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		log.Printf("⚠️  Fuso inválido %q, usando UTC: %v", c.Timezone, err)
		return time.UTC
	}
	return loc
}

// Validate valida se todas as configurações obrigatórias estão presentes
func (c *Config) Validate() error {
	if c.CronSecret == "" {
		return fmt.Errorf("CRON_SECRET is required")
	}

	if err := c.ValidateStore(); err != nil {
		return err
	}

	if c.AuthDisabled && c.Environment == "production" {
		return fmt.Errorf("AUTH_DISABLED is not allowed in production")
	}

	return nil
}

// ValidateStore valida só o que os comandos sem HTTP (dispatch, migrate) precisam.
func (c *Config) ValidateStore() error {
	switch c.StoreBackend {
	case BackendFirestore:
		if c.FirebaseCredentialsPath == "" && c.FirebaseProjectID == "" {
			return fmt.Errorf("FIREBASE_CREDENTIALS_PATH or FIREBASE_PROJECT_ID is required")
		}
	case BackendPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required")
		}
	case BackendMemory:
		if c.Environment == "production" {
			return fmt.Errorf("STORE_BACKEND=memory is not allowed in production")
		}
	default:
		return fmt.Errorf("unknown STORE_BACKEND: %s", c.StoreBackend)
	}

	if c.DispatchConcurrency <= 0 {
		return fmt.Errorf("DISPATCH_CONCURRENCY must be positive")
	}

	// Verificar se alertas estão habilitados mas sem credenciais
	if c.NotifyFailuresEmail && (c.SMTPUsername == "" || c.SMTPPassword == "") {
		log.Println("⚠️  Aviso de falhas por email habilitado mas credenciais SMTP não configuradas")
	}

	if c.WhatsAppAccessToken == "" {
		log.Println("⚠️  WHATSAPP_ACCESS_TOKEN não configurado: só clínicas com credenciais próprias receberão envios")
	}

	return nil
}
