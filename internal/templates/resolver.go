package templates

import (
	"context"
	"errors"
	"fmt"

	"clinica-lembretes/internal/store"
	"clinica-lembretes/pkg/models"
)

var ErrTemplateNotFound = errors.New("template não encontrado")

const (
	FonteCatalogo      = "catalogo"
	FontePersonalizado = "personalizado"
)

// TemplateLookup busca templates personalizados de uma clínica.
type TemplateLookup interface {
	GetTemplatePersonalizado(ctx context.Context, tenantID, templateID string) (*models.TemplatePersonalizado, error)
}

type Resolved struct {
	ProviderTemplateName string
	Fonte                string
	Parameters           []string
}

type Resolver struct {
	lookup TemplateLookup
}

func NewResolver(lookup TemplateLookup) *Resolver {
	return &Resolver{lookup: lookup}
}

// Resolve procura primeiro no catálogo embutido e depois nos templates da
// clínica. O catálogo vence quando os dois usam o mesmo identificador.
func (r *Resolver) Resolve(ctx context.Context, ref, tenantID string) (*Resolved, error) {
	if ref == "" {
		return nil, ErrTemplateNotFound
	}

	if entrada, ok := BuscarNoCatalogo(ref); ok {
		return &Resolved{ProviderTemplateName: entrada.Nome, Fonte: FonteCatalogo}, nil
	}

	t, err := r.lookup.GetTemplatePersonalizado(ctx, tenantID, ref)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrTemplateNotFound, ref)
		}
		return nil, fmt.Errorf("erro ao buscar template %s: %w", ref, err)
	}

	name := t.Titulo
	if name == "" {
		name = t.ID
	}
	return &Resolved{ProviderTemplateName: name, Fonte: FontePersonalizado}, nil
}

// Parametros monta os valores posicionais na ordem fixa: nome do paciente, nome da clínica.
func Parametros(paciente *models.Paciente, clinica *models.Clinica) []string {
	var nomeClinica string
	if clinica != nil {
		nomeClinica = clinica.NomeClinica
	}
	return []string{paciente.Nome, nomeClinica}
}
