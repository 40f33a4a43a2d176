package models

import (
	"encoding/json"
	"fmt"
	"time"
)

type Unidade string

const (
	UnidadeHoras   Unidade = "horas"
	UnidadeDias    Unidade = "dias"
	UnidadeSemanas Unidade = "semanas"
	UnidadeMeses   Unidade = "meses"
)

type Evento string

const (
	EventoAntes  Evento = "antes"
	EventoDepois Evento = "depois"
)

// Gatilho define quando uma etapa dispara. Só existem duas variantes,
// GatilhoRelativo e GatilhoEspecifico; consumidores usam type switch.
type Gatilho interface {
	isGatilho()
}

// GatilhoRelativo: Quantidade·Unidade antes/depois da consulta do paciente.
type GatilhoRelativo struct {
	Quantidade int
	Unidade    Unidade
	Evento     Evento
}

// GatilhoEspecifico: um instante fixo, igual para todos os pacientes do workflow.
type GatilhoEspecifico struct {
	Em time.Time
}

func (GatilhoRelativo) isGatilho()   {}
func (GatilhoEspecifico) isGatilho() {}

func (g GatilhoRelativo) Validate() error {
	if g.Quantidade <= 0 {
		return fmt.Errorf("quantidade deve ser positiva: %d", g.Quantidade)
	}
	switch g.Unidade {
	case UnidadeHoras, UnidadeDias, UnidadeSemanas, UnidadeMeses:
	default:
		return fmt.Errorf("unidade inválida: %q", g.Unidade)
	}
	switch g.Evento {
	case EventoAntes, EventoDepois:
	default:
		return fmt.Errorf("evento inválido: %q", g.Evento)
	}
	return nil
}

func (g GatilhoEspecifico) Validate() error {
	if g.Em.IsZero() {
		return fmt.Errorf("data específica vazia")
	}
	return nil
}

// Etapa é um par template + gatilho dentro de um workflow.
type Etapa struct {
	Template string
	Gatilho  Gatilho
}

func (e Etapa) Validate() error {
	if e.Template == "" {
		return fmt.Errorf("etapa sem template")
	}
	switch g := e.Gatilho.(type) {
	case GatilhoRelativo:
		return g.Validate()
	case GatilhoEspecifico:
		return g.Validate()
	case nil:
		return fmt.Errorf("etapa sem gatilho")
	default:
		return fmt.Errorf("gatilho desconhecido: %T", g)
	}
}

type Workflow struct {
	ID        string   `json:"id"`
	Titulo    string   `json:"titulo"`
	Ativo     bool     `json:"ativo"`
	Pacientes []string `json:"pacientes"`
	Etapas    []Etapa  `json:"etapas"`
}

const (
	tipoRelativo   = "relativo"
	tipoEspecifico = "especifico"
)

// GatilhoDoc é a forma persistida do gatilho (Firestore e JSONB).
type GatilhoDoc struct {
	Tipo           string     `json:"tipo" firestore:"tipo"`
	Quantidade     int        `json:"quantidade,omitempty" firestore:"quantidade,omitempty"`
	Unidade        string     `json:"unidade,omitempty" firestore:"unidade,omitempty"`
	Evento         string     `json:"evento,omitempty" firestore:"evento,omitempty"`
	DataEspecifica *time.Time `json:"dataEspecifica,omitempty" firestore:"dataEspecifica,omitempty"`
}

type EtapaDoc struct {
	Template string     `json:"template" firestore:"template"`
	Gatilho  GatilhoDoc `json:"gatilho" firestore:"gatilho"`
}

type WorkflowDoc struct {
	Titulo    string     `firestore:"titulo"`
	Ativo     bool       `firestore:"ativo"`
	Pacientes []string   `firestore:"pacientes"`
	Etapas    []EtapaDoc `firestore:"etapas"`
}

// ToGatilho decodifica a forma persistida. Exatamente uma variante deve estar preenchida.
func (d GatilhoDoc) ToGatilho() (Gatilho, error) {
	relativo := d.Quantidade != 0 || d.Unidade != "" || d.Evento != ""
	especifico := d.DataEspecifica != nil
	switch d.Tipo {
	case tipoRelativo:
		if especifico {
			return nil, fmt.Errorf("gatilho relativo com data específica")
		}
		return GatilhoRelativo{Quantidade: d.Quantidade, Unidade: Unidade(d.Unidade), Evento: Evento(d.Evento)}, nil
	case tipoEspecifico:
		if relativo || !especifico {
			return nil, fmt.Errorf("gatilho específico inválido")
		}
		return GatilhoEspecifico{Em: *d.DataEspecifica}, nil
	default:
		return nil, fmt.Errorf("tipo de gatilho desconhecido: %q", d.Tipo)
	}
}

func GatilhoToDoc(g Gatilho) (GatilhoDoc, error) {
	switch v := g.(type) {
	case GatilhoRelativo:
		return GatilhoDoc{Tipo: tipoRelativo, Quantidade: v.Quantidade, Unidade: string(v.Unidade), Evento: string(v.Evento)}, nil
	case GatilhoEspecifico:
		em := v.Em
		return GatilhoDoc{Tipo: tipoEspecifico, DataEspecifica: &em}, nil
	default:
		return GatilhoDoc{}, fmt.Errorf("gatilho desconhecido: %T", g)
	}
}

func (d EtapaDoc) ToEtapa() (Etapa, error) {
	g, err := d.Gatilho.ToGatilho()
	if err != nil {
		return Etapa{}, err
	}
	return Etapa{Template: d.Template, Gatilho: g}, nil
}

func (e Etapa) ToDoc() (EtapaDoc, error) {
	g, err := GatilhoToDoc(e.Gatilho)
	if err != nil {
		return EtapaDoc{}, err
	}
	return EtapaDoc{Template: e.Template, Gatilho: g}, nil
}

func (e Etapa) MarshalJSON() ([]byte, error) {
	doc, err := e.ToDoc()
	if err != nil {
		return nil, err
	}
	return json.Marshal(doc)
}

func (e *Etapa) UnmarshalJSON(data []byte) error {
	var doc EtapaDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}
	etapa, err := doc.ToEtapa()
	if err != nil {
		return err
	}
	*e = etapa
	return nil
}

// WorkflowFromDoc monta o workflow a partir do documento persistido.
func WorkflowFromDoc(id string, doc WorkflowDoc) (*Workflow, error) {
	wf := &Workflow{ID: id, Titulo: doc.Titulo, Ativo: doc.Ativo, Pacientes: doc.Pacientes}
	for i, ed := range doc.Etapas {
		etapa, err := ed.ToEtapa()
		if err != nil {
			return nil, fmt.Errorf("workflow %s etapa %d: %w", id, i, err)
		}
		wf.Etapas = append(wf.Etapas, etapa)
	}
	return wf, nil
}

func (w *Workflow) ToDoc() (WorkflowDoc, error) {
	doc := WorkflowDoc{Titulo: w.Titulo, Ativo: w.Ativo, Pacientes: w.Pacientes}
	for i, e := range w.Etapas {
		ed, err := e.ToDoc()
		if err != nil {
			return WorkflowDoc{}, fmt.Errorf("etapa %d: %w", i, err)
		}
		doc.Etapas = append(doc.Etapas, ed)
	}
	return doc, nil
}
