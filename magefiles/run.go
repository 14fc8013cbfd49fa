//go:build mage

package main

import (
	"fmt"
	"path/filepath"

	"github.com/magefile/mage/mg"
)

type Run mg.Namespace

// Preloads every group of the manifest in the given directory with the loading screen.
func (Run) Preload(dir string) error {
	mg.Deps(Build.Binary)
	bin, err := filepath.Abs("bin/preload")
	if err != nil {
		return err
	}
	fmt.Println("Run preloader...")
	if _, err := executeCmd(bin, withArgs("run", "--tui", "--manifest", "manifest.yaml"), withDir(dir), withStream()); err != nil {
		return err
	}
	return nil
}

// Prints the resource kind of each source.
func (Run) Classify(srcs string) error {
	if _, err := executeCmd("go", withArgs(append([]string{"run", ".", "classify"}, splitList(srcs)...)...), withStream()); err != nil {
		return err
	}
	return nil
}
