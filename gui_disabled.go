//go:build !gui

package main

import (
	"fmt"
	"os"
)

func runGUI(*deps) int {
	fmt.Fprintln(os.Stderr, "skinscan: built without GUI support (rebuild with -tags gui)")
	return 1
}
