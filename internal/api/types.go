package api

// GenerateRequest is the body of POST /v1/generate. Optional fields are
// pointers so an absent field falls back to the server defaults while an
// explicit zero is honored.
type GenerateRequest struct {
	Prompt      string   `json:"prompt"`
	Steps       *int     `json:"steps,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
	TopK        *int     `json:"top_k,omitempty"`
	Sample      *bool    `json:"sample,omitempty"`
	Seed        *int64   `json:"seed,omitempty"`
}

// GenerateResponse is the body of a successful generation.
type GenerateResponse struct {
	ID         string  `json:"id"`
	Created    int64   `json:"created"`
	Prompt     string  `json:"prompt"`
	Text       string  `json:"text"`
	Tokens     int     `json:"tokens"`
	DurationMS float64 `json:"duration_ms"`
}

// ResponseError is the error envelope payload.
type ResponseError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Param   string `json:"param,omitempty"`
}
