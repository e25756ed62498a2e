package main

import (
	"io"
	"os"
)

// stderr is swapped in tests.
var stderr io.Writer = os.Stderr

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
