package templates

import (
	"context"
	"errors"
	"testing"

	"clinica-lembretes/internal/store"
	"clinica-lembretes/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveCatalogo(t *testing.T) {
	r := NewResolver(store.NewMemoryStore())

	res, err := r.Resolve(context.Background(), "lembrete_consulta_24h", "u1")
	require.NoError(t, err)
	assert.Equal(t, "lembrete_consulta_24h", res.ProviderTemplateName)
	assert.Equal(t, FonteCatalogo, res.Fonte)
}

func TestResolvePersonalizado(t *testing.T) {
	s := store.NewMemoryStore()
	s.PutTemplatePersonalizado("u1", models.TemplatePersonalizado{ID: "tpl1", Titulo: "promo_julho", Conteudo: "..."})
	r := NewResolver(s)

	res, err := r.Resolve(context.Background(), "tpl1", "u1")
	require.NoError(t, err)
	assert.Equal(t, "promo_julho", res.ProviderTemplateName)
	assert.Equal(t, FontePersonalizado, res.Fonte)

	// template de outra clínica não é visível
	_, err = r.Resolve(context.Background(), "tpl1", "u2")
	assert.ErrorIs(t, err, ErrTemplateNotFound)
}

func TestResolvePrefersCatalogo(t *testing.T) {
	s := store.NewMemoryStore()
	s.PutTemplatePersonalizado("u1", models.TemplatePersonalizado{ID: "aniversario", Titulo: "aniversario_custom"})
	r := NewResolver(s)

	res, err := r.Resolve(context.Background(), "aniversario", "u1")
	require.NoError(t, err)
	assert.Equal(t, "aniversario", res.ProviderTemplateName)
	assert.Equal(t, FonteCatalogo, res.Fonte)
}

func TestResolveNotFound(t *testing.T) {
	r := NewResolver(store.NewMemoryStore())

	_, err := r.Resolve(context.Background(), "nao_existe", "u1")
	assert.ErrorIs(t, err, ErrTemplateNotFound)

	_, err = r.Resolve(context.Background(), "", "u1")
	assert.ErrorIs(t, err, ErrTemplateNotFound)
}

type failingLookup struct{}

func (failingLookup) GetTemplatePersonalizado(context.Context, string, string) (*models.TemplatePersonalizado, error) {
	return nil, errors.New("firestore indisponível")
}

func TestResolveLookupError(t *testing.T) {
	r := NewResolver(failingLookup{})

	_, err := r.Resolve(context.Background(), "tpl1", "u1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrTemplateNotFound)
}

func TestParametrosOrder(t *testing.T) {
	p := &models.Paciente{Nome: "Maria"}
	c := &models.Clinica{NomeClinica: "Clínica Sorriso"}
	assert.Equal(t, []string{"Maria", "Clínica Sorriso"}, Parametros(p, c))
	assert.Equal(t, []string{"Maria", ""}, Parametros(p, nil))
}

func TestCatalogoIsCopy(t *testing.T) {
	c := Catalogo()
	require.NotEmpty(t, c)
	c[0].Nome = "alterado"
	_, ok := BuscarNoCatalogo("alterado")
	assert.False(t, ok)
	for _, e := range Catalogo() {
		assert.NotEmpty(t, e.Variaveis, e.Nome)
	}
}
