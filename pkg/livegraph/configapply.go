package livegraph

import (
	"errors"

	"github.com/randalmurphal/livegraph/pkg/livegraph/config"
	"github.com/randalmurphal/livegraph/pkg/livegraph/graph"
	"github.com/randalmurphal/livegraph/pkg/livegraph/retry"
	"github.com/randalmurphal/livegraph/pkg/livegraph/schema"
)

// maxConfigAttempts bounds the unknown-key stripping loop: one call plus
// three retries.
const maxConfigAttempts = 4

// applyConfig calls set with cfg. When set fails with a validation error
// whose only issues are unrecognized top-level keys, those keys are removed
// and set is called again. It returns the config that was accepted.
func applyConfig(nodeID, method string, cfg map[string]any, set func(map[string]any) error) (map[string]any, error) {
	// Without copies, so the caller's map is never handed to the node.
	candidate := config.New(cfg).Without()
	var lastErr error

	res := retry.Do(retry.Immediate(maxConfigAttempts), func() (map[string]any, error) {
		err := set(candidate.Raw())
		if err == nil {
			return candidate.Raw(), nil
		}
		lastErr = err

		var verr *schema.ValidationError
		if !errors.As(err, &verr) {
			return nil, retry.Permanent(err, method)
		}
		keys, onlyUnknown := verr.UnrecognizedTopLevelKeys()
		if !onlyUnknown {
			return nil, retry.Permanent(err, method)
		}
		candidate = candidate.Without(keys...)
		return nil, retry.Transient(err, method)
	})
	if res.Err != nil {
		return nil, graph.ConfigApply(nodeID, method, lastErr)
	}
	return res.Value, nil
}

// withSchema runs s.Validate before set so schema issues drive the same
// stripping loop as errors from the node itself.
func withSchema(s *schema.Schema, set func(map[string]any) error) func(map[string]any) error {
	if s == nil {
		return set
	}
	return func(cfg map[string]any) error {
		if err := s.Validate(cfg); err != nil {
			return err
		}
		return set(cfg)
	}
}
