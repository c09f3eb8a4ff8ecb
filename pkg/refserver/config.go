// Package refserver implements the reference remote HTTP API of spec §6:
// a local-disk-backed object store server exposing the exact info/list/
// data/create/rename/delete endpoints the httpStore client in pkg/remote
// speaks. It exists so the cache engine is runnable and testable
// end-to-end without a real object store, the way the teacher's own
// control-plane API server stands in front of its stores.
package refserver

import "time"

// Config configures a reference server instance.
type Config struct {
	// Root is the local directory the server exposes as the remote
	// object namespace. Every request path is resolved underneath it.
	Root string

	// Port is the TCP port to listen on. 0 picks a random free port,
	// useful for tests.
	Port int

	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// applyDefaults fills zero-valued timeouts with the teacher's own
// control-plane server defaults.
func (c *Config) applyDefaults() {
	if c.ReadTimeout == 0 {
		c.ReadTimeout = 15 * time.Second
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = 60 * time.Second
	}
	if c.IdleTimeout == 0 {
		c.IdleTimeout = 120 * time.Second
	}
}
