package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// Backend is the get/set capability the cache gate consumes. Implementations
// must tolerate concurrent readers and writers; per-key atomicity is the only
// consistency the engine relies on.
type Backend interface {
	// Get returns the cached value for key and whether it was present.
	Get(ctx context.Context, key string) (any, bool, error)

	// Set stores value under key, overwriting any previous value.
	Set(ctx context.Context, key string, value any) error
}

// Config is a node's own caching configuration.
type Config struct {
	// Enabled opts the node into memoization. The run-level RunConfig must
	// also permit caching for the gate to engage.
	Enabled bool `json:"enabled"`
}

// RunConfig is the run-level cache configuration carried by the runnable
// config. Caching engages for a node only when both the node's Config and
// this RunConfig enable it and a backend is present.
type RunConfig struct {
	Enabled bool
	Backend Backend
}

// Active reports whether the gate should engage for a node with the given
// node-level config.
func (rc RunConfig) Active(node Config) bool {
	return rc.Enabled && node.Enabled && rc.Backend != nil
}

// Key derives the cache key for one node execution: the node identity plus a
// digest of the effective (transformed) input. Two runs of the same node with
// the same input share a key; anything else does not.
func Key(nodeID string, input any) (string, error) {
	encoded, err := json.Marshal(input)
	if err != nil {
		return "", fmt.Errorf("cache: input is not JSON-serializable: %w", err)
	}
	digest := sha256.Sum256(encoded)
	return fmt.Sprintf("node:%s:%s", nodeID, hex.EncodeToString(digest[:])), nil
}
