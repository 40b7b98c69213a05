package generation

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/elevare/server/internal/model"
	"github.com/elevare/server/internal/port/outbound"
	"github.com/go-playground/validator/v10"
)

// Chapter is one ebook chapter.
type Chapter struct {
	Title   string `json:"title" validate:"required"`
	Content string `json:"content" validate:"required"`
}

// Ebook is a generated lead-magnet ebook.
type Ebook struct {
	Title        string    `json:"title" validate:"required"`
	Subtitle     string    `json:"subtitle,omitempty"`
	Introduction string    `json:"introduction" validate:"required"`
	Chapters     []Chapter `json:"chapters" validate:"required,min=1,dive"`
	Conclusion   string    `json:"conclusion" validate:"required"`
	CallToAction string    `json:"call_to_action,omitempty"`
}

// AdVariation is an alternative headline and body for A/B tests.
type AdVariation struct {
	Headline    string `json:"headline" validate:"required"`
	PrimaryText string `json:"primary_text" validate:"required"`
}

// AdCampaign is a generated ad package.
type AdCampaign struct {
	Headline     string        `json:"headline" validate:"required"`
	PrimaryText  string        `json:"primary_text" validate:"required"`
	Description  string        `json:"description,omitempty"`
	CallToAction string        `json:"call_to_action" validate:"required"`
	Audience     string        `json:"audience,omitempty"`
	Hashtags     []string      `json:"hashtags,omitempty"`
	Variations   []AdVariation `json:"variations,omitempty" validate:"dive"`
}

// Post is a generated social media post.
type Post struct {
	Caption   string   `json:"caption" validate:"required"`
	Hashtags  []string `json:"hashtags,omitempty"`
	Slides    []string `json:"slides,omitempty"`
	ImageIdea string   `json:"image_idea,omitempty"`
}

// GeneratedPrompt is one ready-to-use prompt.
type GeneratedPrompt struct {
	Title   string `json:"title" validate:"required"`
	Prompt  string `json:"prompt" validate:"required"`
	UseCase string `json:"use_case,omitempty"`
}

// PromptPack is a set of generated prompts.
type PromptPack struct {
	Prompts []GeneratedPrompt `json:"prompts" validate:"required,min=1,dive"`
}

// Image is a generated image.
type Image struct {
	Data     string `json:"data"`
	MimeType string `json:"mime_type"`
}

// Video is a generated video. URL is a temporary download link when the
// asset was stored; otherwise Data carries it inline as base64.
type Video struct {
	URL        string    `json:"url,omitempty"`
	ExpiresAt  time.Time `json:"expires_at,omitempty"`
	Data       string    `json:"data,omitempty"`
	MimeType   string    `json:"mime_type"`
	SizeBytes  int64     `json:"size_bytes"`
	StorageKey string    `json:"-"`
}

// Result is the outcome of a successful generation.
type Result struct {
	Feature          model.FeatureType `json:"feature"`
	Ebook            *Ebook            `json:"ebook,omitempty"`
	Ad               *AdCampaign       `json:"ad,omitempty"`
	Post             *Post             `json:"post,omitempty"`
	Prompts          *PromptPack       `json:"prompts,omitempty"`
	Image            *Image            `json:"image,omitempty"`
	Video            *Video            `json:"video,omitempty"`
	Raw              string            `json:"raw,omitempty"`
	Model            string            `json:"model,omitempty"`
	CreditsCharged   int64             `json:"credits_charged"`
	CreditsRemaining int64             `json:"credits_remaining"`
	LedgerEntryID    string            `json:"ledger_entry_id,omitempty"`
	CompletedAt      time.Time         `json:"completed_at"`
}

var resultValidator = validator.New()

// decodeStructured parses provider JSON into T and validates it. Any failure
// is a ProviderResponseError; fields are never silently defaulted.
func decodeStructured[T any](op, raw string) (*T, error) {
	text := stripCodeFence(raw)
	if text == "" {
		return nil, &outbound.ProviderResponseError{Op: op, Reason: "empty response"}
	}

	var out T
	if err := json.Unmarshal([]byte(text), &out); err != nil {
		return nil, &outbound.ProviderResponseError{Op: op, Reason: "malformed JSON", Err: err}
	}
	if err := resultValidator.Struct(&out); err != nil {
		return nil, &outbound.ProviderResponseError{Op: op, Reason: "response does not match schema", Err: err}
	}
	return &out, nil
}

// DecodeEbook parses and validates an ebook reply.
func DecodeEbook(raw string) (*Ebook, error) {
	return decodeStructured[Ebook]("decode ebook", raw)
}

// DecodeAdCampaign parses and validates an ad campaign reply.
func DecodeAdCampaign(raw string) (*AdCampaign, error) {
	return decodeStructured[AdCampaign]("decode ad campaign", raw)
}

// DecodePost parses and validates a post reply.
func DecodePost(raw string) (*Post, error) {
	return decodeStructured[Post]("decode post", raw)
}

// DecodePromptPack parses and validates a prompt pack reply.
func DecodePromptPack(raw string) (*PromptPack, error) {
	return decodeStructured[PromptPack]("decode prompts", raw)
}

// stripCodeFence removes a ```json fence some models wrap JSON in.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
