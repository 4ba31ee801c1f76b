// Package model provides the wire types of the backend API.
package model

// SourceRef points a chat answer at one retrieved chunk.
type SourceRef struct {
	Source string  `json:"source"`
	Page   int     `json:"page"`
	Score  float32 `json:"score"`
}

// RetrievalResult is the retrieval stage output for one user query:
// the assembled context block and the references behind it.
type RetrievalResult struct {
	Context  string      `json:"context"`
	Sources  []SourceRef `json:"sources"`
	Degraded bool        `json:"degraded,omitempty"`
}
