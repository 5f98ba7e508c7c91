// Command forestfs works with a forest described by a catalog file, e.g.
//
//	forestfs --catalog forest.yaml ls /photos
//	forestfs --catalog forest.yaml cp /photos@3f2a9c1e/2019 /backup/2019
package main

import (
	"os"
)

func main() {
	if err := execute(&env{}, os.Args[1:]); err != nil {
		os.Exit(1)
	}
}
