// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package container runs local conversion tools inside docker or podman.
// The markitdown conversion backend pipes a PDF through a container image
// and reads Markdown back from stdout.
package container

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
)

// maxStderr bounds how much container stderr is kept for error messages.
const maxStderr = 2048

// ErrNoRuntime is returned when no supported container runtime responds.
var ErrNoRuntime = errors.New("no container runtime available")

// Runtime runs short-lived, network-isolated containers.
type Runtime interface {
	// Name returns the runtime binary ("docker" or "podman").
	Name() string

	// ImageExists checks whether the named image exists locally.
	ImageExists(ctx context.Context, image string) error

	// Run executes image with --network none, piping stdin and stdout. The
	// container is killed when ctx is cancelled.
	Run(ctx context.Context, image string, stdin io.Reader, stdout io.Writer) error
}

// executor abstracts command execution for testing.
type executor interface {
	LookPath(file string) (string, error)
	Run(ctx context.Context, name string, args []string, stdin io.Reader, stdout, stderr io.Writer) error
}

type osExecutor struct{}

func (osExecutor) LookPath(file string) (string, error) { return exec.LookPath(file) }

func (osExecutor) Run(ctx context.Context, name string, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdin = stdin
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	return cmd.Run()
}

// flavor describes how one runtime binary is driven. Docker and podman
// differ only in the image-check subcommand.
type flavor struct {
	bin        string
	imageCheck []string
}

// flavors lists supported runtimes in detection order.
var flavors = []flavor{
	{bin: "docker", imageCheck: []string{"image", "inspect"}},
	{bin: "podman", imageCheck: []string{"image", "exists"}},
}

type cli struct {
	flavor
	exec executor
}

func (c *cli) Name() string { return c.bin }

// probe runs `<bin> info` and reports whether the daemon answers.
func (c *cli) probe(ctx context.Context) bool {
	if _, err := c.exec.LookPath(c.bin); err != nil {
		return false
	}
	return c.exec.Run(ctx, c.bin, []string{"info"}, nil, io.Discard, io.Discard) == nil
}

func (c *cli) ImageExists(ctx context.Context, image string) error {
	args := append(append([]string(nil), c.imageCheck...), image)
	if err := c.exec.Run(ctx, c.bin, args, nil, io.Discard, io.Discard); err != nil {
		return fmt.Errorf("image %s not found in %s: %w", image, c.bin, err)
	}
	return nil
}

func (c *cli) Run(ctx context.Context, image string, stdin io.Reader, stdout io.Writer) error {
	args := []string{"run", "--rm", "-i", "--network", "none", image}
	var stderr bytes.Buffer
	if err := c.exec.Run(ctx, c.bin, args, stdin, stdout, &stderr); err != nil {
		if msg := tail(stderr.String(), maxStderr); msg != "" {
			return fmt.Errorf("running %s container %s: %w: %s", c.bin, image, err, msg)
		}
		return fmt.Errorf("running %s container %s: %w", c.bin, image, err)
	}
	return nil
}

// tail returns the last n bytes of s, trimmed.
func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) > n {
		s = s[len(s)-n:]
	}
	return s
}

// Detect returns a working runtime. With prefer empty, docker is tried
// before podman; otherwise only the named runtime is considered.
func Detect(ctx context.Context, prefer string) (Runtime, error) {
	return detect(ctx, osExecutor{}, prefer)
}

func detect(ctx context.Context, exec executor, prefer string) (Runtime, error) {
	tried := make([]string, 0, len(flavors))
	for _, f := range flavors {
		if prefer != "" && f.bin != prefer {
			continue
		}
		tried = append(tried, f.bin)
		c := &cli{flavor: f, exec: exec}
		if c.probe(ctx) {
			return c, nil
		}
	}
	if len(tried) == 0 {
		return nil, fmt.Errorf("unknown container runtime %q", prefer)
	}
	return nil, fmt.Errorf("%w: tried %s", ErrNoRuntime, strings.Join(tried, ", "))
}
