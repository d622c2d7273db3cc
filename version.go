package deckflow

// Version is the library version reported by the CLI and the HTTP health check.
// Overridden at build time with -ldflags "-X github.com/aretw0/deckflow.Version=...".
var Version = "0.4.0"
