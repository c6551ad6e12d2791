package vectorstore

// Document is a text payload to be embedded and stored.
type Document struct {
	// ID is the unique document identifier (UUID).
	ID string

	// Content is the text that gets embedded.
	Content string

	// Metadata holds filterable key-value payload fields. Every document
	// must carry tenant_id.
	Metadata map[string]interface{}
}

// SearchResult is one similarity search hit.
type SearchResult struct {
	// ID is the stored document identifier.
	ID string

	// Content is the stored text.
	Content string

	// Score is the similarity score, higher is more similar.
	Score float32

	// Metadata is the stored payload.
	Metadata map[string]interface{}
}
