//go:build mage
// +build mage

package main

import (
	"github.com/grafana/grafana-plugin-sdk-go/build"
	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

// Default builds the plugin
func Default() error {
	return build.BuildAll()
}

// Datlas builds the offline chart CLI into dist/
func Datlas() error {
	return sh.RunV("go", "build", "-o", "dist/datlas", "./cmd/datlas")
}

// All builds the plugin and the CLI
func All() {
	mg.Deps(Default, Datlas)
}
