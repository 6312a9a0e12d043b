// Package version reports build metadata for execkit binaries.
//
// Values are injected at link time and fall back to the module's embedded
// VCS settings:
//
//	go build -ldflags "-X github.com/kbukum/execkit/version.Version=1.0.0" ./cmd/execbench
package version
