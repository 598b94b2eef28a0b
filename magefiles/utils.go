//go:build mage

package main

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/magefile/mage/mg"
)

// run describes one external tool invocation.
type run struct {
	args   []string
	env    []string
	dir    string
	stream bool
}

type runOption func(*run)

func withArgs(args ...string) runOption {
	return func(r *run) { r.args = append(r.args, args...) }
}

func withDir(dir string) runOption {
	return func(r *run) { r.dir = dir }
}

// withEnv adds KEY=VALUE pairs on top of the current environment.
func withEnv(kv ...string) runOption {
	return func(r *run) { r.env = append(r.env, kv...) }
}

func withStream() runOption {
	return func(r *run) { r.stream = true }
}

// requireTool fails early with an install hint when tool is not on PATH.
func requireTool(tool, hint string) (string, error) {
	path, err := exec.LookPath(tool)
	if err != nil {
		return "", fmt.Errorf("%s not found on PATH (%s): %w", tool, hint, err)
	}
	return path, nil
}

// executeCmd runs tool and returns its combined output. Output is echoed
// when streaming was requested or mage runs with -v; otherwise it is only
// printed on failure.
func executeCmd(tool string, options ...runOption) (string, error) {
	r := &run{}
	for _, o := range options {
		o(r)
	}

	where := ""
	if r.dir != "" {
		where = " (in " + r.dir + ")"
	}
	fmt.Printf("> %s %s%s\n", tool, strings.Join(r.args, " "), where)

	cmd := exec.Command(tool, r.args...)
	cmd.Dir = r.dir
	if len(r.env) > 0 {
		cmd.Env = append(os.Environ(), r.env...)
	}

	var out bytes.Buffer
	echo := r.stream || mg.Verbose()
	cmd.Stdout, cmd.Stderr = &out, &out
	if echo {
		cmd.Stdout = io.MultiWriter(&out, os.Stdout)
		cmd.Stderr = io.MultiWriter(&out, os.Stderr)
	}

	if err := cmd.Run(); err != nil {
		if !echo {
			fmt.Fprintf(os.Stderr, "%s failed:\n%s\n", tool, out.String())
		}
		return "", fmt.Errorf("%s: %w", tool, err)
	}
	return out.String(), nil
}
