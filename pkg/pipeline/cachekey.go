package pipeline

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"

	"github.com/pkg/errors"

	"github.com/askiada/pipefitter/pkg/pipeline/spec"
)

// cacheKeyLength is the width of the printable cache identifier: 32 hex
// characters, 128 bits of the underlying digest.
const cacheKeyLength = 32

type cacheKeyArg struct {
	Name  string `json:"name"`
	Value any    `json:"value"`
}

// cacheKeyPayload is the canonical serialisation hashed into a node's
// cache key. Args are sorted by name so the key is independent of map
// iteration order; predecessor keys stay in declared order because that
// order is part of the node's lineage.
type cacheKeyPayload struct {
	Spec         string        `json:"spec"`
	Args         []cacheKeyArg `json:"args"`
	Predecessors []string      `json:"predecessors"`
}

// computeCacheKey derives the node's deterministic cache identifier from
// its spec content, resolved args and ordered predecessor keys. Run id,
// base path, component id and the cache flag are deliberately excluded:
// none of them changes what the node computes.
func computeCacheKey(sp *spec.ComponentSpec, args map[string]any, predecessorKeys []string) (string, error) {
	contentHash, err := sp.ContentHash()
	if err != nil {
		return "", errors.Wrap(err, "unable to hash spec content")
	}

	names := make([]string, 0, len(args))
	for name := range args {
		names = append(names, name)
	}
	sort.Strings(names)

	payload := cacheKeyPayload{
		Spec:         contentHash,
		Args:         make([]cacheKeyArg, 0, len(names)),
		Predecessors: append([]string{}, predecessorKeys...),
	}

	for _, name := range names {
		payload.Args = append(payload.Args, cacheKeyArg{Name: name, Value: args[name]})
	}

	serialised, err := json.Marshal(payload)
	if err != nil {
		return "", errors.Wrap(err, "unable to serialise cache key payload")
	}

	sum := sha256.Sum256(serialised)

	return hex.EncodeToString(sum[:])[:cacheKeyLength], nil
}
