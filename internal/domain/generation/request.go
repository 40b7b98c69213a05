package generation

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/elevare/server/internal/model"
	"github.com/go-playground/validator/v10"
)

// BusinessContext describes the clinic the content is written for.
type BusinessContext struct {
	ClinicName string `json:"clinic_name" validate:"max=120"`
	Specialty  string `json:"specialty" validate:"max=120"`
	City       string `json:"city" validate:"max=120"`
	Audience   string `json:"audience" validate:"max=300"`
}

// Input is the feature-specific part of a generation request.
type Input interface {
	Feature() model.FeatureType
}

// EbookInput requests a lead-magnet ebook.
type EbookInput struct {
	Theme    string `json:"theme" validate:"required,max=200"`
	Tone     string `json:"tone" validate:"max=60"`
	Chapters int    `json:"chapters" validate:"omitempty,min=3,max=12"`
}

func (*EbookInput) Feature() model.FeatureType { return model.FeatureEbook }

// AdInput requests a paid-ads campaign package.
type AdInput struct {
	Procedure string `json:"procedure" validate:"required,max=200"`
	Objective string `json:"objective" validate:"required,max=200"`
	Platform  string `json:"platform" validate:"omitempty,oneof=instagram facebook google tiktok"`
	Tone      string `json:"tone" validate:"max=60"`
}

func (*AdInput) Feature() model.FeatureType { return model.FeatureAd }

// PostInput requests a social media post.
type PostInput struct {
	Topic    string `json:"topic" validate:"required,max=300"`
	Platform string `json:"platform" validate:"omitempty,oneof=instagram facebook linkedin tiktok"`
	Format   string `json:"format" validate:"omitempty,oneof=feed carrossel story reels"`
	Tone     string `json:"tone" validate:"max=60"`
}

func (*PostInput) Feature() model.FeatureType { return model.FeaturePost }

// PromptInput requests ready-to-use prompts for other AI tools.
type PromptInput struct {
	Goal    string `json:"goal" validate:"required,max=300"`
	Context string `json:"context" validate:"max=1000"`
	Count   int    `json:"count" validate:"omitempty,min=1,max=10"`
}

func (*PromptInput) Feature() model.FeatureType { return model.FeaturePrompt }

// ImageInput requests a single generated image.
type ImageInput struct {
	Description string `json:"description" validate:"required,max=1000"`
	AspectRatio string `json:"aspect_ratio" validate:"omitempty,oneof=1:1 3:4 4:3 9:16 16:9"`
}

func (*ImageInput) Feature() model.FeatureType { return model.FeatureImage }

// VideoInput requests a short generated video.
type VideoInput struct {
	Prompt      string `json:"prompt" validate:"required,max=2000"`
	AspectRatio string `json:"aspect_ratio" validate:"omitempty,oneof=16:9 9:16"`
	Resolution  string `json:"resolution" validate:"omitempty,oneof=720p 1080p"`
}

func (*VideoInput) Feature() model.FeatureType { return model.FeatureVideo }

// Request is one generation attempt.
type Request struct {
	Input    Input
	Business BusinessContext
	// RequestID correlates the ledger entry with the HTTP request.
	RequestID string
}

// Feature returns the requested feature.
func (r *Request) Feature() model.FeatureType {
	if r == nil || r.Input == nil {
		return ""
	}
	return r.Input.Feature()
}

// NewInput returns an empty input for a feature.
func NewInput(feature model.FeatureType) (Input, error) {
	switch feature {
	case model.FeatureEbook:
		return &EbookInput{}, nil
	case model.FeatureAd:
		return &AdInput{}, nil
	case model.FeaturePost:
		return &PostInput{}, nil
	case model.FeaturePrompt:
		return &PromptInput{}, nil
	case model.FeatureImage:
		return &ImageInput{}, nil
	case model.FeatureVideo:
		return &VideoInput{}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownFeature, feature)
}

// DecodeRequest parses a JSON body of the form
// {"business": {...}, "input": {...}} for a feature. Unknown fields are rejected.
func DecodeRequest(feature model.FeatureType, body []byte) (*Request, error) {
	input, err := NewInput(feature)
	if err != nil {
		return nil, err
	}

	var envelope struct {
		Business BusinessContext `json:"business"`
		Input    json.RawMessage `json:"input"`
	}
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&envelope); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	if len(envelope.Input) == 0 {
		return nil, fmt.Errorf("%w: missing input", ErrInvalidRequest)
	}

	dec = json.NewDecoder(bytes.NewReader(envelope.Input))
	dec.DisallowUnknownFields()
	if err := dec.Decode(input); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	return &Request{Input: input, Business: envelope.Business}, nil
}

// requestValidator validates requests with struct tags.
type requestValidator struct {
	v *validator.Validate
}

func newRequestValidator() *requestValidator {
	return &requestValidator{v: validator.New()}
}

func (rv *requestValidator) Validate(req *Request) error {
	if req == nil || req.Input == nil {
		return fmt.Errorf("%w: missing input", ErrInvalidRequest)
	}
	if err := rv.v.Struct(req.Input); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidRequest, describeValidation(err))
	}
	if err := rv.v.Struct(req.Business); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidRequest, describeValidation(err))
	}
	return nil
}

func describeValidation(err error) string {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fmt.Sprintf("%s failed %s", strings.ToLower(fe.Field()), fe.Tag()))
	}
	return strings.Join(parts, ", ")
}
