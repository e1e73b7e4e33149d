// Package relay turns upstream event streams into client-facing
// responses.
//
// The Aggregator supports two consumption modes over the same upstream
// exchange. Buffered mode (GenerateResponse) concatenates the chunks and
// returns one trimmed string, substituting fixed sentinel text for empty
// responses and upstream errors. Streaming mode (GenerateResponseStream)
// forwards each chunk as a Delta and guarantees exactly one terminal
// Final delta per stream, however the underlying connection ends.
//
// The package also resolves an agent's model settings against defaults
// and assembles the per-exchange prompt context.
package relay
