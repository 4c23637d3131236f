// Package dedupe provides a time-based cache of content fingerprints so
// repeated story submissions short-circuit to the existing row.
package dedupe
