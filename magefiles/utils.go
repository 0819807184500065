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

// runOpts configures a single tool invocation from a target.
type runOpts struct {
	args []string
	// echo copies the tool's output to the terminal as it runs.
	echo bool
}

type runOpt func(*runOpts)

func withArgs(args ...string) runOpt {
	return func(o *runOpts) { o.args = args }
}

func withStream() runOpt {
	return func(o *runOpts) { o.echo = true }
}

// executeCmd runs a build tool (go, glslc) and returns its combined output.
// Output stays buffered unless mage runs verbose or the caller streams it;
// buffered output is dumped only when the tool fails.
func executeCmd(tool string, options ...runOpt) (string, error) {
	opts := runOpts{}
	for _, apply := range options {
		apply(&opts)
	}

	fmt.Printf("$ %s %s\n", tool, strings.Join(opts.args, " "))
	var out bytes.Buffer
	cmd := exec.Command(tool, opts.args...)
	cmd.Stdout, cmd.Stderr = &out, &out
	echo := opts.echo || mg.Verbose()
	if echo {
		cmd.Stdout = io.MultiWriter(&out, os.Stdout)
		cmd.Stderr = io.MultiWriter(&out, os.Stderr)
	}

	if err := cmd.Run(); err != nil {
		if !echo {
			fmt.Fprintf(os.Stderr, "%s failed:\n%s\n", tool, out.String())
		}
		return "", fmt.Errorf("%s %s: %w", tool, strings.Join(opts.args, " "), err)
	}
	return out.String(), nil
}
