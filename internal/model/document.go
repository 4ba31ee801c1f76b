package model

// UploadDocumentResponse reports one indexed document.
type UploadDocumentResponse struct {
	Status              string         `json:"status"`
	DocumentID          string         `json:"document_id"`
	Filename            string         `json:"filename"`
	TotalPages          int            `json:"total_pages"`
	ChunksIndexed       int            `json:"chunks_indexed"`
	CharactersExtracted int            `json:"characters_extracted"`
	Metadata            map[string]any `json:"metadata"`
}

// DeleteDocumentResponse reports how many chunks a delete removed.
type DeleteDocumentResponse struct {
	Status        string `json:"status"`
	DocumentID    string `json:"document_id"`
	ChunksDeleted int    `json:"chunks_deleted"`
}

// SearchRequest is a raw similarity search against the knowledge base.
type SearchRequest struct {
	Query        string `json:"query" binding:"required"`
	TopK         int    `json:"top_k"`
	DocumentType string `json:"document_type"`
	PatientID    string `json:"patient_id"`
}

// SearchResponse carries the scored chunks of one search.
type SearchResponse struct {
	Query   string         `json:"query"`
	Results []SearchHit    `json:"results"`
	Total   int            `json:"total"`
	Filters map[string]any `json:"filters"`
}

// SearchHit is one scored chunk.
type SearchHit struct {
	Text     string         `json:"text"`
	Score    float32        `json:"score"`
	Metadata map[string]any `json:"metadata"`
}
