//go:build mage

package main

import (
	"os"
	"path/filepath"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/target"
)

const shaderDir = "assets/shaders"

type Build mg.Namespace

// Compiles every GLSL stage under assets/shaders to SPIR-V next to it.
func (Build) Shaders() error {
	return buildShaders()
}

// Builds the vkframe binary into bin/.
func (Build) Binary() error {
	mg.Deps(Build.Shaders)
	if err := os.MkdirAll("bin", 0o755); err != nil {
		return err
	}
	_, err := executeCmd("go", withArgs("build", "-o", filepath.Join("bin", "vkframe"), "."), withStream())
	return err
}

func buildShaders() error {
	var sources []string
	for _, pattern := range []string{"*.vert", "*.frag"} {
		matches, err := filepath.Glob(filepath.Join(shaderDir, pattern))
		if err != nil {
			return err
		}
		sources = append(sources, matches...)
	}
	for _, src := range sources {
		out := src + ".spv"
		stale, err := target.Path(out, src)
		if err != nil {
			return err
		}
		if !stale {
			continue
		}
		if _, err := executeCmd("glslc", withArgs(src, "-o", out), withStream()); err != nil {
			return err
		}
	}
	return nil
}
