//go:build mage

package main

import (
	"fmt"

	"github.com/magefile/mage/mg"
)

type Run mg.Namespace

// Compiles the shaders and runs the rotating cube.
func (Run) Cube() error {
	return runDemo("cube")
}

// Compiles the shaders and runs the textured cube.
func (Run) Textured() error {
	return runDemo("textured-cube")
}

// Compiles the shaders and runs the triangle.
func (Run) Triangle() error {
	return runDemo("triangle")
}

func runDemo(demo string, extra ...string) error {
	if err := buildShaders(); err != nil {
		return err
	}
	fmt.Printf("Run %s...\n", demo)
	args := append([]string{"run", ".", "-demo", demo}, extra...)
	if _, err := executeCmd("go", withArgs(args...), withStream()); err != nil {
		return err
	}
	return nil
}
