//go:build mage

package main

import (
	"fmt"

	"github.com/magefile/mage/mg"
)

type Run mg.Namespace

// Compiles the shaders and runs the demo with assets/config.toml.
func (Run) Engine() error {
	mg.Deps(Build.Shaders)
	fmt.Println("Run engine...")
	if _, err := executeCmd("go", withArgs("run", ".", "run", "--config", "assets/config.toml"), withStream()); err != nil {
		return err
	}
	return nil
}

// Lists the Vulkan devices on this machine.
func (Run) Devices() error {
	_, err := executeCmd("go", withArgs("run", ".", "list-devices"), withStream())
	return err
}

// Runs the test suite.
func (Run) Tests() error {
	_, err := executeCmd("go", withArgs("test", "./..."), withStream())
	return err
}
