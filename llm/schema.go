package llm

import "github.com/google/generative-ai-go/genai"

// ValuationSchema is the reply shape requested for a batch of lots: one
// object per lot, keyed by the lot ID it was given.
func ValuationSchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeArray,
		Items: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"id": {
					Type:        genai.TypeString,
					Description: "The lot ID exactly as given",
				},
				"estimated_value": {
					Type:        genai.TypeNumber,
					Description: "Estimated current market price in the lot's currency",
				},
				"valuation": {
					Type:   genai.TypeString,
					Format: "enum",
					Enum:   []string{"undervalued", "fairly valued", "overvalued"},
				},
				"rationale": {
					Type:        genai.TypeString,
					Description: "One or two sentences explaining the estimate",
				},
			},
			Required: []string{"id", "estimated_value", "rationale"},
		},
	}
}
