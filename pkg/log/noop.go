package log

// Discard is a Logger that drops every message. Plugins and clients fall
// back to it when no logger is configured.
var Discard Logger = discard{}

type discard struct{}

func (discard) Debug(string, ...Field) {}
func (discard) Info(string, ...Field)  {}
func (discard) Warn(string, ...Field)  {}
func (discard) Error(string, ...Field) {}

// OrDiscard returns l, or Discard when l is nil.
func OrDiscard(l Logger) Logger {
	if l == nil {
		return Discard
	}
	return l
}
