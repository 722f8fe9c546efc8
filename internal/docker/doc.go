// Package docker provides Docker Engine API wrappers for building,
// tagging, pushing and running the graph-updater image.
//
// This package handles:
//   - Docker client initialization with automatic socket detection
//     (Linux, macOS, Windows)
//   - Image labels that record the variant, tags and source revision of
//     every image built by this tool
//   - Image operations: build, tag, push, login, list, remove
//   - Container operations for local runs: run, stop, remove, list
//
// The package uses github.com/docker/docker/client as the underlying
// Docker SDK, with version negotiation enabled for broad compatibility.
package docker
