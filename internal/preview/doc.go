// Package preview renders story text for public share listings: markdown
// to safe HTML, and rune-aware truncation for compact displays.
package preview
