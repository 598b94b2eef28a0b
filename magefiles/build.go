//go:build mage

package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/target"
)

type Build mg.Namespace

const shaderDir = "assets/shaders"

var shaderSources = []string{"shadow.vert", "sss.vert", "sss.frag"}

// Compiles the GLSL sources under assets/shaders to SPIR-V with glslc.
// Up-to-date modules are skipped.
func (Build) Shaders() error {
	glslc, err := requireTool("glslc", "install the Vulkan SDK or shaderc")
	if err != nil {
		return err
	}
	for _, src := range shaderSources {
		out := src + ".spv"
		stale, err := target.Path(filepath.Join(shaderDir, out), filepath.Join(shaderDir, src))
		if err != nil {
			return err
		}
		if !stale {
			continue
		}
		if _, err := executeCmd(glslc, withArgs("--target-env=vulkan1.0", src, "-o", out), withDir(shaderDir), withStream()); err != nil {
			return err
		}
	}
	return nil
}

// Builds the subsurface binary into bin/.
func (Build) Binary() error {
	mg.Deps(Build.Shaders)
	if err := os.MkdirAll("bin", 0o755); err != nil {
		return fmt.Errorf("failed to create bin/: %w", err)
	}
	// glfw and the Vulkan loader are cgo bindings.
	_, err := executeCmd("go", withArgs("build", "-o", "bin/subsurface", "."), withEnv("CGO_ENABLED=1"), withStream())
	return err
}
