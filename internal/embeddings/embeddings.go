// Package embeddings provides local embedding generation for claim content.
//
// The FastEmbed provider runs ONNX models in-process so duplicate detection
// works without an external embedding service. Binaries built without CGO
// get a stub that returns ErrFastEmbedNotAvailable.
package embeddings

import "errors"

// DefaultModel is used when no model is configured.
const DefaultModel = "BAAI/bge-small-en-v1.5"

var (
	// ErrInvalidConfig indicates the provider configuration is invalid.
	ErrInvalidConfig = errors.New("embeddings: invalid configuration")

	// ErrEmptyInput indicates no text was provided for embedding.
	ErrEmptyInput = errors.New("embeddings: empty input")

	// ErrEmbeddingFailed indicates the underlying model failed to produce vectors.
	ErrEmbeddingFailed = errors.New("embeddings: embedding generation failed")

	// ErrFastEmbedNotAvailable is returned when the binary was built without CGO.
	ErrFastEmbedNotAvailable = errors.New("embeddings: fastembed not available (binary built without CGO support)")
)

// modelDimensions maps supported model names to their embedding dimensions.
var modelDimensions = map[string]int{
	"BAAI/bge-small-en-v1.5":                 384,
	"BAAI/bge-small-en":                      384,
	"BAAI/bge-base-en-v1.5":                  768,
	"BAAI/bge-base-en":                       768,
	"BAAI/bge-small-zh-v1.5":                 512,
	"sentence-transformers/all-MiniLM-L6-v2": 384,
}

// ModelDimension returns the embedding dimension for a supported model name.
func ModelDimension(model string) (int, bool) {
	dim, ok := modelDimensions[model]
	return dim, ok
}
