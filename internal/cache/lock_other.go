//go:build !unix

package cache

import "os"

// Without flock only the in-process per-key lock applies.
func tryFlock(*os.File, bool) error { return nil }

func funlock(*os.File) error { return nil }
