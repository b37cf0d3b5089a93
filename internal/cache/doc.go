// Package cache stores model responses on disk so that re-running an
// identical prompt with identical parameters does not call the model again.
//
// Entries are JSON files named by the SHA-256 of the provider, parameters and
// prompt, and expire after a configurable TTL. The cache is opt-in: a run with
// a non-zero temperature is not deterministic, and a cached answer replays
// the first one.
package cache
