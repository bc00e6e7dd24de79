// Package ports defines the interfaces (ports) that connect the application
// layer to infrastructure adapters.
//
// # Port Interfaces
//
//   - [Transport] and [Conn]: the persistent push connection to the service
//   - [FrameCodec]: encodes request frames and decodes result messages
//   - [ImageStore]: turns decoded image bytes into displayable handles
//   - [MarkerRepository]: persists the best-effort session marker
//   - [Logger]: structured logging abstraction
//
// # Usage
//
// The application layer (internal/app) depends only on these interfaces.
// Infrastructure adapters (internal/adapters) implement them with
// websockets, msgpack, the file system, zerolog and prometheus.
package ports
