package ports

import "context"

// Message is one websocket-style message.
type Message struct {
	// Binary is true for binary messages and false for text messages.
	Binary bool
	Data   []byte
}

// Transport opens persistent push connections.
type Transport interface {
	// Dial connects to url. It honours ctx for the duration of the handshake only.
	Dial(ctx context.Context, url string) (Conn, error)
}

// Conn is one open connection. Read is called from a single reader
// goroutine and Write from a single writer goroutine; Close may be called
// from any goroutine and must unblock a pending Read.
type Conn interface {
	Read() (Message, error)
	Write(msg Message) error
	Close() error
}
