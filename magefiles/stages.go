//go:build mage

package main

import (
	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

// Pipeline groups targets that run pipeline stages through the built CLI.
type Pipeline mg.Namespace

// cli builds the binary and runs it with args, streaming output.
func cli(args ...string) error {
	mg.Deps(Build)
	return sh.RunV(binPath(), args...)
}

// Run performs the daily run: discover, rank, summarize, and write the digest.
func (Pipeline) Run() error {
	mg.Deps(Init)
	return cli("run")
}

// Discover scrapes the listing into the catalog.
func (Pipeline) Discover() error {
	return cli("discover")
}

// Convert converts every downloaded PDF under papers/raw.
func (Pipeline) Convert() error {
	return cli("convert", "--batch")
}

// Unread lists catalog papers not yet summarized.
func (Pipeline) Unread() error {
	return cli("catalog", "list", "--unread")
}
