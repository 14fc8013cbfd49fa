//go:build mage

package main

import (
	"github.com/magefile/mage/mg"
)

type Build mg.Namespace

// Runs go mod tidy and then builds the preload binary into bin/.
func (Build) Binary() error {
	if err := goTidy(); err != nil {
		return err
	}
	if _, err := executeCmd("go", withArgs("build", "-o", "bin/preload", "."), withStream()); err != nil {
		return err
	}
	return nil
}

// Runs the unit tests with the race detector.
func (Build) Test() error {
	if _, err := executeCmd("go", withArgs("test", "-race", "./..."), withStream()); err != nil {
		return err
	}
	return nil
}
