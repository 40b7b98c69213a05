package outbound

import "context"

// Schema is the subset of OpenAPI schema accepted as a structured response format.
type Schema struct {
	Type        string             `json:"type"`
	Description string             `json:"description,omitempty"`
	Enum        []string           `json:"enum,omitempty"`
	Properties  map[string]*Schema `json:"properties,omitempty"`
	Required    []string           `json:"required,omitempty"`
	Items       *Schema            `json:"items,omitempty"`
}

// TextRequest is a text generation call.
type TextRequest struct {
	APIKey            string
	Model             string
	Prompt            string
	SystemInstruction string
	// Schema, when set, constrains the reply to JSON matching it.
	Schema      *Schema
	Temperature *float64
}

// TextResponse is the reply to a text generation call.
type TextResponse struct {
	Text  string
	Model string
}

// ImageRequest is an image generation call.
type ImageRequest struct {
	APIKey      string
	Model       string
	Prompt      string
	AspectRatio string
}

// ImageResponse carries the generated image as base64.
type ImageResponse struct {
	Data     string
	MimeType string
	Model    string
}

// VideoRequest is a long-running video generation call.
type VideoRequest struct {
	APIKey      string
	Model       string
	Prompt      string
	AspectRatio string
	Resolution  string
}

// VideoResponse carries the downloaded video asset.
type VideoResponse struct {
	Data          []byte
	MimeType      string
	SourceURI     string
	Model         string
	PollAttempts  int
	OperationName string
}

// GenAIPort is the call boundary to the generative AI provider.
// Implementations return MissingCredentialError, ProviderResponseError or
// NetworkError.
type GenAIPort interface {
	GenerateText(ctx context.Context, req *TextRequest) (*TextResponse, error)
	GenerateImage(ctx context.Context, req *ImageRequest) (*ImageResponse, error)
	// GenerateVideo starts the operation, polls it to completion within a
	// bounded budget and downloads the asset.
	GenerateVideo(ctx context.Context, req *VideoRequest) (*VideoResponse, error)
}
