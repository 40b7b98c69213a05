package notification

import (
	"bytes"
	"fmt"
	"html/template"
)

// Template names.
const (
	TemplateCreditsLow = "credits-low"
	TemplateRenewal    = "renewal"
	TemplateWelcome    = "welcome"
)

// TemplateData is the field set substituted into every template.
type TemplateData struct {
	Name             string
	PlanName         string
	CreditsRemaining int64
	MonthlyCredits   int64
	Unlimited        bool
	RenewalDate      string
	AppURL           string
	UpgradeURL       string
}

type emailTemplate struct {
	subject string
	body    *template.Template
}

// Templates renders the notification emails.
type Templates struct {
	byName map[string]emailTemplate
}

// NewTemplates parses the built-in templates.
func NewTemplates() *Templates {
	parse := func(name, body string) *template.Template {
		t := template.Must(template.New("layout").Parse(layoutTemplate))
		return template.Must(t.New(name).Parse(body))
	}
	return &Templates{byName: map[string]emailTemplate{
		TemplateCreditsLow: {subject: "Seus créditos estão acabando", body: parse(TemplateCreditsLow, creditsLowTemplate)},
		TemplateRenewal:    {subject: "Seus créditos foram renovados", body: parse(TemplateRenewal, renewalTemplate)},
		TemplateWelcome:    {subject: "Bem-vindo ao seu novo plano", body: parse(TemplateWelcome, welcomeTemplate)},
	}}
}

// Render returns the subject and HTML body of a template.
func (t *Templates) Render(name string, data TemplateData) (string, string, error) {
	tmpl, ok := t.byName[name]
	if !ok {
		return "", "", fmt.Errorf("unknown template %q", name)
	}
	if data.Name == "" {
		data.Name = "criador(a)"
	}

	var buf bytes.Buffer
	if err := tmpl.body.ExecuteTemplate(&buf, "layout", data); err != nil {
		return "", "", fmt.Errorf("render %s: %w", name, err)
	}
	return tmpl.subject, buf.String(), nil
}

const layoutTemplate = `<!DOCTYPE html>
<html lang="pt-BR">
<head>
    <meta charset="UTF-8">
    <style>
        body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; }
        .container { max-width: 600px; margin: 0 auto; padding: 20px; }
        .button { display: inline-block; padding: 12px 24px; background-color: #7C3AED; color: white; text-decoration: none; border-radius: 6px; }
        .footer { margin-top: 30px; font-size: 12px; color: #666; }
    </style>
</head>
<body>
    <div class="container">
        {{template "content" .}}
        <div class="footer">
            <p>Você recebeu este email porque tem uma conta em {{.AppURL}}.</p>
        </div>
    </div>
</body>
</html>
`

const creditsLowTemplate = `{{define "content"}}
        <h1>Seus créditos estão acabando</h1>
        <p>Olá {{.Name}},</p>
        <p>Você tem <strong>{{.CreditsRemaining}}</strong> de {{.MonthlyCredits}} créditos restantes no plano {{.PlanName}}.</p>
        <p>Faça upgrade para continuar criando sem interrupções:</p>
        <p><a href="{{.UpgradeURL}}" class="button">Ver planos</a></p>
{{end}}`

const renewalTemplate = `{{define "content"}}
        <h1>Créditos renovados</h1>
        <p>Olá {{.Name}},</p>
        {{if .Unlimited}}<p>Seu plano {{.PlanName}} foi renovado com créditos ilimitados.</p>
        {{else}}<p>Seu plano {{.PlanName}} foi renovado com <strong>{{.MonthlyCredits}}</strong> créditos.</p>
        {{end}}{{if .RenewalDate}}<p>Próxima renovação: {{.RenewalDate}}.</p>
        {{end}}<p><a href="{{.AppURL}}" class="button">Começar a criar</a></p>
{{end}}`

const welcomeTemplate = `{{define "content"}}
        <h1>Bem-vindo ao plano {{.PlanName}}!</h1>
        <p>Olá {{.Name}},</p>
        <p>Sua assinatura está ativa.{{if .Unlimited}} Você tem créditos ilimitados para ebooks, anúncios, posts, prompts, imagens e vídeos.{{else}} Você tem {{.MonthlyCredits}} créditos por mês.{{end}}</p>
        <p><a href="{{.AppURL}}" class="button">Acessar a plataforma</a></p>
{{end}}`
