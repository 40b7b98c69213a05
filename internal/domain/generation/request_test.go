package generation

import (
	"testing"

	"github.com/elevare/server/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeRequest_Ebook(t *testing.T) {
	body := []byte(`{
		"business": {"clinic_name": "Clínica Bella", "specialty": "harmonização facial"},
		"input": {"theme": "Cuidados pós-botox", "tone": "acolhedor", "chapters": 5}
	}`)

	req, err := DecodeRequest(model.FeatureEbook, body)
	require.NoError(t, err)

	assert.Equal(t, model.FeatureEbook, req.Feature())
	assert.Equal(t, "Clínica Bella", req.Business.ClinicName)

	in, ok := req.Input.(*EbookInput)
	require.True(t, ok)
	assert.Equal(t, "Cuidados pós-botox", in.Theme)
	assert.Equal(t, 5, in.Chapters)
}

func TestDecodeRequest_Rejections(t *testing.T) {
	tests := []struct {
		name    string
		feature model.FeatureType
		body    string
	}{
		{"unknown feature", "podcast", `{"input": {}}`},
		{"malformed", model.FeatureAd, `{"input":`},
		{"missing input", model.FeatureAd, `{"business": {}}`},
		{"unknown envelope field", model.FeatureAd, `{"input": {}, "extra": 1}`},
		{"unknown input field", model.FeaturePost, `{"input": {"topic": "x", "colour": "red"}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeRequest(tt.feature, []byte(tt.body))
			assert.Error(t, err)
		})
	}
}

func TestNewInput_AllFeatures(t *testing.T) {
	for _, f := range model.AllFeatures {
		in, err := NewInput(f)
		require.NoError(t, err, f)
		assert.Equal(t, f, in.Feature())
	}
}

func TestValidate(t *testing.T) {
	v := newRequestValidator()

	tests := []struct {
		name  string
		req   *Request
		valid bool
	}{
		{"nil request", nil, false},
		{"missing input", &Request{}, false},
		{"valid ebook", &Request{Input: &EbookInput{Theme: "Peeling"}}, true},
		{"ebook without theme", &Request{Input: &EbookInput{}}, false},
		{"ebook too few chapters", &Request{Input: &EbookInput{Theme: "x", Chapters: 2}}, false},
		{"ad bad platform", &Request{Input: &AdInput{Procedure: "x", Objective: "y", Platform: "myspace"}}, false},
		{"valid ad", &Request{Input: &AdInput{Procedure: "x", Objective: "y", Platform: "instagram"}}, true},
		{"post bad format", &Request{Input: &PostInput{Topic: "x", Format: "poster"}}, false},
		{"prompt count too high", &Request{Input: &PromptInput{Goal: "x", Count: 11}}, false},
		{"image bad ratio", &Request{Input: &ImageInput{Description: "x", AspectRatio: "2:1"}}, false},
		{"video bad resolution", &Request{Input: &VideoInput{Prompt: "x", Resolution: "4k"}}, false},
		{"valid video", &Request{Input: &VideoInput{Prompt: "x", AspectRatio: "9:16", Resolution: "720p"}}, true},
		{
			"business too long",
			&Request{Input: &EbookInput{Theme: "x"}, Business: BusinessContext{Audience: string(make([]byte, 301))}},
			false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(tt.req)
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrInvalidRequest)
			}
		})
	}
}
