// Package registry provides a generic thread-safe registry keyed by an
// ordered type.
//
// The reconciler's template registry is built on it: templates are
// registered once at startup and looked up on every apply, so reads take a
// shared lock.
//
//	templates := registry.New[string, Template]()
//	templates.Register("noop", noopTemplate)
//
//	t, ok := templates.Get("noop")
//
// Register never rejects a key that is already present. The last write wins,
// which lets tests and hot-reload paths swap an implementation in place.
//
// Keys and Range return entries in ascending key order, so output built from
// them is deterministic.
package registry
