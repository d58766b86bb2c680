// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package container

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeExec answers LookPath from a set of installed binaries and Run from a
// table keyed by "bin arg0 arg1...".
type fakeExec struct {
	installed map[string]bool
	fail      map[string]error
	stdout    string
	stderr    string
	calls     []string
	stdin     string
}

func (f *fakeExec) LookPath(file string) (string, error) {
	if f.installed[file] {
		return "/usr/bin/" + file, nil
	}
	return "", errors.New("not found")
}

func (f *fakeExec) Run(_ context.Context, name string, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	key := strings.Join(append([]string{name}, args...), " ")
	f.calls = append(f.calls, key)
	if stdin != nil {
		b, _ := io.ReadAll(stdin)
		f.stdin = string(b)
	}
	if err, ok := f.fail[key]; ok {
		io.WriteString(stderr, f.stderr)
		return err
	}
	io.WriteString(stdout, f.stdout)
	return nil
}

func TestDetect(t *testing.T) {
	tests := []struct {
		name     string
		exec     *fakeExec
		prefer   string
		wantName string
		wantErr  string
	}{
		{
			name:     "docker first",
			exec:     &fakeExec{installed: map[string]bool{"docker": true, "podman": true}},
			wantName: "docker",
		},
		{
			name: "falls back to podman when docker daemon is down",
			exec: &fakeExec{
				installed: map[string]bool{"docker": true, "podman": true},
				fail:      map[string]error{"docker info": errors.New("cannot connect")},
			},
			wantName: "podman",
		},
		{
			name:     "preferred runtime only",
			exec:     &fakeExec{installed: map[string]bool{"docker": true, "podman": true}},
			prefer:   "podman",
			wantName: "podman",
		},
		{
			name:    "preferred runtime missing",
			exec:    &fakeExec{installed: map[string]bool{"docker": true}},
			prefer:  "podman",
			wantErr: "tried podman",
		},
		{
			name:    "nothing installed",
			exec:    &fakeExec{},
			wantErr: "tried docker, podman",
		},
		{
			name:    "unknown preference",
			exec:    &fakeExec{installed: map[string]bool{"docker": true}},
			prefer:  "containerd",
			wantErr: `unknown container runtime "containerd"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rt, err := detect(context.Background(), tt.exec, tt.prefer)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantName, rt.Name())
		})
	}
}

func TestDetect_NoRuntimeSentinel(t *testing.T) {
	_, err := detect(context.Background(), &fakeExec{}, "")
	assert.ErrorIs(t, err, ErrNoRuntime)
}

func TestImageExists(t *testing.T) {
	ctx := context.Background()
	fe := &fakeExec{
		installed: map[string]bool{"docker": true, "podman": true},
		fail:      map[string]error{"docker image inspect missing:latest": errors.New("exit 1")},
	}
	docker := &cli{flavor: flavors[0], exec: fe}
	podman := &cli{flavor: flavors[1], exec: fe}

	assert.NoError(t, docker.ImageExists(ctx, "markitdown:latest"))
	assert.NoError(t, podman.ImageExists(ctx, "markitdown:latest"))
	err := docker.ImageExists(ctx, "missing:latest")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "image missing:latest not found in docker")

	assert.Equal(t, []string{
		"docker image inspect markitdown:latest",
		"podman image exists markitdown:latest",
		"docker image inspect missing:latest",
	}, fe.calls)
}

func TestRun(t *testing.T) {
	ctx := context.Background()
	const runKey = "docker run --rm -i --network none markitdown:latest"

	t.Run("pipes stdin and stdout", func(t *testing.T) {
		fe := &fakeExec{stdout: "# Converted"}
		c := &cli{flavor: flavors[0], exec: fe}
		var out strings.Builder
		require.NoError(t, c.Run(ctx, "markitdown:latest", strings.NewReader("%PDF"), &out))
		assert.Equal(t, "# Converted", out.String())
		assert.Equal(t, "%PDF", fe.stdin)
		assert.Equal(t, []string{runKey}, fe.calls)
	})

	t.Run("error carries stderr", func(t *testing.T) {
		fe := &fakeExec{
			fail:   map[string]error{runKey: errors.New("exit status 1")},
			stderr: "  Traceback: unsupported file\n",
		}
		c := &cli{flavor: flavors[0], exec: fe}
		err := c.Run(ctx, "markitdown:latest", strings.NewReader(""), io.Discard)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "exit status 1")
		assert.True(t, strings.HasSuffix(err.Error(), ": Traceback: unsupported file"))
	})

	t.Run("error without stderr", func(t *testing.T) {
		fe := &fakeExec{fail: map[string]error{runKey: errors.New("exit status 2")}}
		c := &cli{flavor: flavors[0], exec: fe}
		err := c.Run(ctx, "markitdown:latest", strings.NewReader(""), io.Discard)
		require.Error(t, err)
		assert.Equal(t, "running docker container markitdown:latest: exit status 2", err.Error())
	})
}

func TestTail(t *testing.T) {
	assert.Equal(t, "", tail("  \n", 10))
	assert.Equal(t, "abc", tail(" abc ", 10))
	assert.Equal(t, "6789", tail("0123456789", 4))
}
