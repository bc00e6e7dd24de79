// Package domain contains the core entities and value objects for seedstream.
//
// This package is the innermost layer. It has no dependencies on transport,
// storage or logging and contains only the data shapes and rules shared by
// the rest of the module.
//
// # Entities
//
//   - [RequestFrame]: the merged outbound parameter set pushed to the service
//   - [ResultFrame]: an inbound rendered result with its timing breakdown
//   - [InputState]: the user-editable prompt and the shared [SeedState]
//   - [DisplayState]: the image handle and timing currently on display
//   - [SessionMarker]: the best-effort "session initialized" marker
//
// The protocol carries no correlation id between a RequestFrame and the
// ResultFrame it eventually produces. Results are applied in arrival order.
package domain
