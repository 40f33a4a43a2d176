package email

import (
	"fmt"
	"html"
	"strings"
	"time"
)

// LinhaFalha é uma linha da tabela do resumo de falhas.
type LinhaFalha struct {
	Paciente string
	Template string
	Motivo   string
}

// FailureDigestTemplate gera HTML com as mensagens que falharam
func FailureDigestTemplate(nomeClinica string, linhas []LinhaFalha, quando time.Time) string {
	var rows strings.Builder
	for _, l := range linhas {
		fmt.Fprintf(&rows, "                <tr><td>%s</td><td>%s</td><td>%s</td></tr>\n",
			html.EscapeString(l.Paciente), html.EscapeString(l.Template), html.EscapeString(l.Motivo))
	}
	if nomeClinica == "" {
		nomeClinica = "equipe"
	}

	return fmt.Sprintf(`
<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <style>
        body { font-family: Arial, sans-serif; background-color: #f4f4f4; margin: 0; padding: 20px; }
        .container { max-width: 600px; margin: 0 auto; background-color: #ffffff; border-radius: 8px; overflow: hidden; }
        .header { background-color: #DC3545; color: white; padding: 20px; text-align: center; }
        .content { padding: 30px; }
        table { width: 100%%; border-collapse: collapse; }
        th, td { text-align: left; padding: 8px; border-bottom: 1px solid #eee; font-size: 14px; }
        .footer { background-color: #f8f9fa; padding: 15px; text-align: center; font-size: 12px; color: #666; }
    </style>
</head>
<body>
    <div class="container">
        <div class="header">
            <h1>⚠️ Mensagens não enviadas</h1>
        </div>
        <div class="content">
            <p>Olá <strong>%s</strong>,</p>
            <p>%d mensagem(ns) agendada(s) de WhatsApp falharam em %s e não serão reenviadas automaticamente.</p>
            <table>
                <tr><th>Paciente</th><th>Template</th><th>Motivo</th></tr>
%s            </table>
            <p>Revise o cadastro dos pacientes e os templates aprovados, e agende novamente se necessário.</p>
        </div>
        <div class="footer">
            <p>Este é um email automático. Não responda a este email</p>
        </div>
    </div>
</body>
</html>
    `, html.EscapeString(nomeClinica), len(linhas), quando.Format("02/01/2006 15:04"), rows.String())
}
