// Package log provides a logging abstraction for seedstream components.
//
// This package defines a Logger interface that can be implemented by
// any logging library. Discard drops everything and serves tests and
// embedders that do not want output; the command-line host installs a
// zerolog-backed implementation.
//
// # Usage
//
//	s, err := seedstream.New(cfg, seedstream.WithLogger(myLogger))
//
// # Custom Loggers
//
// Implement the Logger interface to integrate with your existing
// logging infrastructure:
//
//	type MyLogger struct { ... }
//
//	func (l *MyLogger) Debug(msg string, fields ...log.Field) { ... }
//	func (l *MyLogger) Info(msg string, fields ...log.Field) { ... }
//	func (l *MyLogger) Warn(msg string, fields ...log.Field) { ... }
//	func (l *MyLogger) Error(msg string, fields ...log.Field) { ... }
package log
