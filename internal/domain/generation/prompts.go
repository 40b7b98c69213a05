package generation

import (
	"fmt"
	"strings"

	"github.com/elevare/server/internal/port/outbound"
)

const basePersona = "Você é a LucresIA, especialista em marketing para clínicas de estética no Brasil. " +
	"Escreva em português do Brasil, com linguagem ética, sem promessas de resultado garantido " +
	"e respeitando as normas de publicidade médica."

func str(desc string) *outbound.Schema {
	return &outbound.Schema{Type: "STRING", Description: desc}
}

func strList(desc string) *outbound.Schema {
	return &outbound.Schema{Type: "ARRAY", Description: desc, Items: &outbound.Schema{Type: "STRING"}}
}

var (
	ebookSchema = &outbound.Schema{
		Type: "OBJECT",
		Properties: map[string]*outbound.Schema{
			"title":        str("Título do ebook"),
			"subtitle":     str("Subtítulo"),
			"introduction": str("Introdução"),
			"chapters": {
				Type: "ARRAY",
				Items: &outbound.Schema{
					Type: "OBJECT",
					Properties: map[string]*outbound.Schema{
						"title":   str("Título do capítulo"),
						"content": str("Conteúdo do capítulo"),
					},
					Required: []string{"title", "content"},
				},
			},
			"conclusion":     str("Conclusão"),
			"call_to_action": str("Chamada para ação final"),
		},
		Required: []string{"title", "introduction", "chapters", "conclusion"},
	}

	adSchema = &outbound.Schema{
		Type: "OBJECT",
		Properties: map[string]*outbound.Schema{
			"headline":       str("Título do anúncio"),
			"primary_text":   str("Texto principal"),
			"description":    str("Descrição curta"),
			"call_to_action": str("Botão de chamada para ação"),
			"audience":       str("Sugestão de público"),
			"hashtags":       strList("Hashtags sem o símbolo #"),
			"variations": {
				Type: "ARRAY",
				Items: &outbound.Schema{
					Type: "OBJECT",
					Properties: map[string]*outbound.Schema{
						"headline":     str("Título alternativo"),
						"primary_text": str("Texto alternativo"),
					},
					Required: []string{"headline", "primary_text"},
				},
			},
		},
		Required: []string{"headline", "primary_text", "call_to_action"},
	}

	postSchema = &outbound.Schema{
		Type: "OBJECT",
		Properties: map[string]*outbound.Schema{
			"caption":    str("Legenda completa"),
			"hashtags":   strList("Hashtags sem o símbolo #"),
			"slides":     strList("Texto de cada slide quando o formato for carrossel"),
			"image_idea": str("Sugestão de imagem"),
		},
		Required: []string{"caption"},
	}

	promptSchema = &outbound.Schema{
		Type: "OBJECT",
		Properties: map[string]*outbound.Schema{
			"prompts": {
				Type: "ARRAY",
				Items: &outbound.Schema{
					Type: "OBJECT",
					Properties: map[string]*outbound.Schema{
						"title":    str("Nome do prompt"),
						"prompt":   str("Prompt pronto para uso"),
						"use_case": str("Quando usar"),
					},
					Required: []string{"title", "prompt"},
				},
			},
		},
		Required: []string{"prompts"},
	}
)

// systemInstruction combines the persona with the clinic context.
func systemInstruction(task string, biz BusinessContext) string {
	var b strings.Builder
	b.WriteString(basePersona)
	b.WriteString(" ")
	b.WriteString(task)

	var ctx []string
	if biz.ClinicName != "" {
		ctx = append(ctx, "clínica: "+biz.ClinicName)
	}
	if biz.Specialty != "" {
		ctx = append(ctx, "especialidade: "+biz.Specialty)
	}
	if biz.City != "" {
		ctx = append(ctx, "cidade: "+biz.City)
	}
	if biz.Audience != "" {
		ctx = append(ctx, "público: "+biz.Audience)
	}
	if len(ctx) > 0 {
		b.WriteString(" Contexto do negócio: ")
		b.WriteString(strings.Join(ctx, "; "))
		b.WriteString(".")
	}
	return b.String()
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}

func ebookPrompt(in *EbookInput) string {
	chapters := in.Chapters
	if chapters == 0 {
		chapters = 5
	}
	return fmt.Sprintf(
		"Crie um ebook educativo sobre %q com %d capítulos, tom %s. "+
			"Cada capítulo deve ter de 3 a 5 parágrafos e terminar com uma dica prática.",
		in.Theme, chapters, orDefault(in.Tone, "acolhedor e profissional"),
	)
}

func adPrompt(in *AdInput) string {
	return fmt.Sprintf(
		"Crie uma campanha de anúncios para %s sobre o procedimento %q com o objetivo %q, tom %s. "+
			"Inclua duas variações para teste A/B.",
		orDefault(in.Platform, "instagram"), in.Procedure, in.Objective, orDefault(in.Tone, "confiante"),
	)
}

func postPrompt(in *PostInput) string {
	return fmt.Sprintf(
		"Crie um post de %s no formato %s sobre %q, tom %s.",
		orDefault(in.Platform, "instagram"), orDefault(in.Format, "feed"), in.Topic, orDefault(in.Tone, "próximo"),
	)
}

func promptPackPrompt(in *PromptInput) string {
	count := in.Count
	if count == 0 {
		count = 5
	}
	p := fmt.Sprintf("Crie %d prompts prontos para usar em ferramentas de IA com o objetivo %q.", count, in.Goal)
	if in.Context != "" {
		p += " Contexto adicional: " + in.Context
	}
	return p
}

func imagePrompt(in *ImageInput, biz BusinessContext) string {
	p := "Fotografia profissional para marketing de clínica de estética: " + in.Description
	if biz.Specialty != "" {
		p += ". Especialidade: " + biz.Specialty
	}
	return p
}
