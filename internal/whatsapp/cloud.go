// Package whatsapp envia mensagens de template pela WhatsApp Cloud API (Meta).
package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"clinica-lembretes/internal/config"
	"clinica-lembretes/pkg/models"
)

// Sender entrega um template aprovado para um telefone, com parâmetros posicionais.
// clinica é o perfil já carregado pelo chamador; as credenciais próprias dela
// têm precedência sobre as globais.
type Sender interface {
	Send(ctx context.Context, clinica *models.Clinica, phone, templateName string, params []string) error
}

var (
	ErrNotConfigured = errors.New("whatsapp: credenciais não configuradas")
	ErrInvalidPhone  = errors.New("whatsapp: telefone inválido")
)

// APIError é uma resposta não-2xx da Cloud API.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("whatsapp: HTTP %d: %s", e.StatusCode, e.Body)
}

type Config struct {
	BaseURL       string
	APIVersion    string
	PhoneNumberID string
	AccessToken   string
	Language      string
}

func ConfigFrom(cfg *config.Config) Config {
	return Config{
		BaseURL:       cfg.WhatsAppAPIURL,
		APIVersion:    cfg.WhatsAppAPIVersion,
		PhoneNumberID: cfg.WhatsAppPhoneNumberID,
		AccessToken:   cfg.WhatsAppAccessToken,
		Language:      cfg.WhatsAppLanguage,
	}
}

type CloudClient struct {
	cfg    Config
	client *http.Client
}

var _ Sender = (*CloudClient)(nil)

func NewCloudClient(cfg Config) *CloudClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://graph.facebook.com"
	}
	if cfg.APIVersion == "" {
		cfg.APIVersion = "v21.0"
	}
	if cfg.Language == "" {
		cfg.Language = "pt_BR"
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &CloudClient{
		cfg:    cfg,
		client: &http.Client{Timeout: 15 * time.Second},
	}
}

// WithHTTPClient troca o http.Client (testes).
func (c *CloudClient) WithHTTPClient(hc *http.Client) *CloudClient {
	c.client = hc
	return c
}

type templateMessage struct {
	MessagingProduct string          `json:"messaging_product"`
	To               string          `json:"to"`
	Type             string          `json:"type"`
	Template         templatePayload `json:"template"`
}

type templatePayload struct {
	Name       string      `json:"name"`
	Language   language    `json:"language"`
	Components []component `json:"components,omitempty"`
}

type language struct {
	Code string `json:"code"`
}

type component struct {
	Type       string      `json:"type"`
	Parameters []parameter `json:"parameters"`
}

type parameter struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type sendResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
}

func (c *CloudClient) credenciais(clinica *models.Clinica) (phoneNumberID, token string, err error) {
	if clinica != nil && clinica.WhatsAppPhoneNumberID != "" && clinica.WhatsAppAccessToken != "" {
		return clinica.WhatsAppPhoneNumberID, clinica.WhatsAppAccessToken, nil
	}
	if c.cfg.PhoneNumberID == "" || c.cfg.AccessToken == "" {
		return "", "", ErrNotConfigured
	}
	return c.cfg.PhoneNumberID, c.cfg.AccessToken, nil
}

func (c *CloudClient) Send(ctx context.Context, clinica *models.Clinica, phone, templateName string, params []string) error {
	to, err := NormalizePhone(phone)
	if err != nil {
		return err
	}
	phoneNumberID, token, err := c.credenciais(clinica)
	if err != nil {
		return err
	}

	msg := templateMessage{
		MessagingProduct: "whatsapp",
		To:               to,
		Type:             "template",
		Template: templatePayload{
			Name:     templateName,
			Language: language{Code: c.cfg.Language},
		},
	}
	if len(params) > 0 {
		body := component{Type: "body", Parameters: make([]parameter, 0, len(params))}
		for _, p := range params {
			body.Parameters = append(body.Parameters, parameter{Type: "text", Text: p})
		}
		msg.Template.Components = []component{body}
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("whatsapp: encode: %w", err)
	}

	reqURL := fmt.Sprintf("%s/%s/%s/messages", c.cfg.BaseURL, c.cfg.APIVersion, phoneNumberID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("whatsapp: %w", err)
	}
	defer resp.Body.Close()

	slurp, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return fmt.Errorf("whatsapp: %s: read body: %w", resp.Status, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(slurp))}
	}

	var out sendResponse
	if err := json.Unmarshal(slurp, &out); err == nil && len(out.Messages) > 0 {
		log.Printf("📲 WhatsApp aceito (%s) para %s: %s", templateName, MaskPhone(to), out.Messages[0].ID)
	}
	return nil
}

// NormalizePhone mantém só os dígitos e adiciona o DDI 55 a números nacionais
// (10 ou 11 dígitos, DDD + número).
func NormalizePhone(phone string) (string, error) {
	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := strings.TrimLeft(b.String(), "0")
	switch {
	case len(digits) == 10 || len(digits) == 11:
		return "55" + digits, nil
	case len(digits) >= 12 && len(digits) <= 15:
		return digits, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidPhone, phone)
	}
}

// MaskPhone esconde o telefone nos logs, mantendo só os 4 últimos dígitos.
func MaskPhone(phone string) string {
	if len(phone) <= 4 {
		return strings.Repeat("*", len(phone))
	}
	return strings.Repeat("*", len(phone)-4) + phone[len(phone)-4:]
}
