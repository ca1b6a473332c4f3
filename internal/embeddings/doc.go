// Package embeddings provides local embedding generation via FastEmbed
// (ONNX runtime) and a pool that shares one provider instance per model.
//
// Providers are constructed lazily by the pool on first use of a model.
// Construction negotiates ONNX execution providers (cuda then cpu) when
// GPU support is enabled, falling back to CPU on failure.
package embeddings
