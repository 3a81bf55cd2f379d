package domain

import "context"

// ChunkStream is one streaming reply from the model. Recv returns the next
// chunk's text, or io.EOF once the reply completed.
type ChunkStream interface {
	Recv() (string, error)
	Close() error
}

// ModelSession holds a single continuous conversation with the external
// model. Context from earlier exchanges is kept by the session itself.
type ModelSession interface {
	SendStream(ctx context.Context, message string) (ChunkStream, error)
}

// Corrector fixes grammar and spelling of a piece of user text.
type Corrector interface {
	Correct(ctx context.Context, text string) (string, error)
}

// Speaker reads finalized replies aloud. Implementations must not block.
type Speaker interface {
	Say(text string)
	Interrupt()
}
