package gemini

import (
	"context"
	"strings"

	"github.com/elevare/server/internal/port/outbound"
)

type inlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inlineData,omitempty"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type imageConfig struct {
	AspectRatio string `json:"aspectRatio,omitempty"`
}

type generationConfig struct {
	Temperature        *float64         `json:"temperature,omitempty"`
	ResponseMimeType   string           `json:"responseMimeType,omitempty"`
	ResponseSchema     *outbound.Schema `json:"responseSchema,omitempty"`
	ResponseModalities []string         `json:"responseModalities,omitempty"`
	ImageConfig        *imageConfig     `json:"imageConfig,omitempty"`
}

type generateContentRequest struct {
	Contents          []content         `json:"contents"`
	SystemInstruction *content          `json:"systemInstruction,omitempty"`
	GenerationConfig  *generationConfig `json:"generationConfig,omitempty"`
}

type generateContentResponse struct {
	Candidates []struct {
		Content      content `json:"content"`
		FinishReason string  `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback,omitempty"`
	ModelVersion string `json:"modelVersion"`
}

// firstCandidate returns the parts of the first candidate, or a
// ProviderResponseError explaining why there is none.
func (r *generateContentResponse) firstCandidate(op string) ([]part, error) {
	if r.PromptFeedback != nil && r.PromptFeedback.BlockReason != "" {
		return nil, &outbound.ProviderResponseError{Op: op, Reason: "prompt blocked: " + r.PromptFeedback.BlockReason}
	}
	if len(r.Candidates) == 0 {
		return nil, &outbound.ProviderResponseError{Op: op, Reason: "no candidates"}
	}
	c := r.Candidates[0]
	if len(c.Content.Parts) == 0 {
		reason := "empty candidate"
		if c.FinishReason != "" {
			reason += " (finish reason " + c.FinishReason + ")"
		}
		return nil, &outbound.ProviderResponseError{Op: op, Reason: reason}
	}
	return c.Content.Parts, nil
}

// GenerateText calls generateContent. With a schema the reply is constrained
// to JSON matching it.
func (a *Adapter) GenerateText(ctx context.Context, req *outbound.TextRequest) (*outbound.TextResponse, error) {
	const op = "generate text"
	if err := requireKey(req.APIKey); err != nil {
		return nil, err
	}

	model := orDefault(req.Model, a.config.TextModel)
	body := generateContentRequest{
		Contents: []content{{Role: "user", Parts: []part{{Text: req.Prompt}}}},
	}
	if req.SystemInstruction != "" {
		body.SystemInstruction = &content{Parts: []part{{Text: req.SystemInstruction}}}
	}
	if req.Schema != nil || req.Temperature != nil {
		body.GenerationConfig = &generationConfig{Temperature: req.Temperature}
		if req.Schema != nil {
			body.GenerationConfig.ResponseMimeType = "application/json"
			body.GenerationConfig.ResponseSchema = req.Schema
		}
	}

	var resp generateContentResponse
	if err := a.postJSON(ctx, op, a.modelURL(model, "generateContent"), req.APIKey, body, &resp); err != nil {
		return nil, err
	}

	parts, err := resp.firstCandidate(op)
	if err != nil {
		return nil, err
	}
	var sb strings.Builder
	for _, p := range parts {
		sb.WriteString(p.Text)
	}
	text := strings.TrimSpace(sb.String())
	if text == "" {
		return nil, &outbound.ProviderResponseError{Op: op, Reason: "no text in candidate"}
	}

	return &outbound.TextResponse{Text: text, Model: orDefault(resp.ModelVersion, model)}, nil
}

// GenerateImage calls generateContent with image output and returns the
// first inline image.
func (a *Adapter) GenerateImage(ctx context.Context, req *outbound.ImageRequest) (*outbound.ImageResponse, error) {
	const op = "generate image"
	if err := requireKey(req.APIKey); err != nil {
		return nil, err
	}

	model := orDefault(req.Model, a.config.ImageModel)
	body := generateContentRequest{
		Contents: []content{{Role: "user", Parts: []part{{Text: req.Prompt}}}},
		GenerationConfig: &generationConfig{
			ResponseModalities: []string{"IMAGE"},
		},
	}
	if req.AspectRatio != "" {
		body.GenerationConfig.ImageConfig = &imageConfig{AspectRatio: req.AspectRatio}
	}

	var resp generateContentResponse
	if err := a.postJSON(ctx, op, a.modelURL(model, "generateContent"), req.APIKey, body, &resp); err != nil {
		return nil, err
	}

	parts, err := resp.firstCandidate(op)
	if err != nil {
		return nil, err
	}
	for _, p := range parts {
		if p.InlineData != nil && p.InlineData.Data != "" {
			return &outbound.ImageResponse{
				Data:     p.InlineData.Data,
				MimeType: orDefault(p.InlineData.MimeType, "image/png"),
				Model:    orDefault(resp.ModelVersion, model),
			}, nil
		}
	}
	return nil, &outbound.ProviderResponseError{Op: op, Reason: "no image in candidate"}
}
