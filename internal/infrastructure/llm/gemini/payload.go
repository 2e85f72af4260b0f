package gemini

import "skillforge-api/internal/domain/entity"

// generateContentRequest generateContent 请求体
type generateContentRequest struct {
	Contents         []content        `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type content struct {
	Role  string `json:"role"`
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generationConfig struct {
	MaxOutputTokens  int     `json:"maxOutputTokens"`
	Temperature      float64 `json:"temperature"`
	TopP             float64 `json:"topP"`
	TopK             int     `json:"topK"`
	ResponseMimeType string  `json:"responseMimeType,omitempty"`
}

// newGenerateContentRequest 由领域请求构造请求体；不强制 responseMimeType
func newGenerateContentRequest(req entity.GenerationRequest) generateContentRequest {
	sampling := req.Sampling()
	return generateContentRequest{
		Contents: []content{
			{
				Role:  "user",
				Parts: []part{{Text: req.Prompt()}},
			},
		},
		GenerationConfig: generationConfig{
			MaxOutputTokens: req.MaxOutputTokens(),
			Temperature:     sampling.Temperature,
			TopP:            sampling.TopP,
			TopK:            sampling.TopK,
		},
	}
}
