package templates

// Variavel é um placeholder posicional ({{1}}, {{2}}, ...) e o rótulo exibido na tela.
// Serve só de documentação: quem monta os valores é o dispatcher.
type Variavel struct {
	Placeholder string `json:"placeholder"`
	Label       string `json:"label"`
}

// EntradaCatalogo é um template aprovado no provedor. Nome é o identificador
// estável e também o nome do template no WhatsApp.
type EntradaCatalogo struct {
	Nome      string     `json:"nome"`
	Categoria string     `json:"categoria"`
	Conteudo  string     `json:"conteudo"`
	Variaveis []Variavel `json:"variaveis"`
}

var variaveisPadrao = []Variavel{
	{Placeholder: "{{1}}", Label: "Nome do paciente"},
	{Placeholder: "{{2}}", Label: "Nome da clínica"},
}

var catalogo = []EntradaCatalogo{
	{
		Nome:      "lembrete_consulta_24h",
		Categoria: "Lembrete",
		Conteudo:  "Olá {{1}}! Passando para lembrar da sua consulta amanhã na {{2}}. Qualquer dúvida, é só responder esta mensagem.",
		Variaveis: variaveisPadrao,
	},
	{
		Nome:      "confirmacao_consulta",
		Categoria: "Confirmação",
		Conteudo:  "Olá {{1}}, tudo bem? A {{2}} gostaria de confirmar sua presença na próxima consulta. Responda SIM para confirmar.",
		Variaveis: variaveisPadrao,
	},
	{
		Nome:      "lembrete_retorno",
		Categoria: "Retorno",
		Conteudo:  "Olá {{1}}! Já está na hora de agendar seu retorno na {{2}}. Entre em contato para marcar o melhor horário.",
		Variaveis: variaveisPadrao,
	},
	{
		Nome:      "pos_consulta",
		Categoria: "Pós-consulta",
		Conteudo:  "Olá {{1}}, obrigado pela visita à {{2}}! Como você está se sentindo após a consulta?",
		Variaveis: variaveisPadrao,
	},
	{
		Nome:      "aniversario",
		Categoria: "Relacionamento",
		Conteudo:  "Feliz aniversário, {{1}}! Toda a equipe da {{2}} deseja um dia maravilhoso.",
		Variaveis: variaveisPadrao,
	},
	{
		Nome:      "boas_vindas",
		Categoria: "Relacionamento",
		Conteudo:  "Seja bem-vindo(a), {{1}}! A {{2}} agora envia seus lembretes por aqui.",
		Variaveis: variaveisPadrao,
	},
}

// Catalogo devolve uma cópia do catálogo embutido.
func Catalogo() []EntradaCatalogo {
	out := make([]EntradaCatalogo, len(catalogo))
	copy(out, catalogo)
	return out
}

func BuscarNoCatalogo(nome string) (EntradaCatalogo, bool) {
	for _, e := range catalogo {
		if e.Nome == nome {
			return e, true
		}
	}
	return EntradaCatalogo{}, false
}
