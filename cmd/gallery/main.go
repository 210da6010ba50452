package main

import (
	"context"
	"os"

	"github.com/charmbracelet/fang"

	"github.com/Sternrassler/picsum-gallery/internal/cli"
	"github.com/Sternrassler/picsum-gallery/internal/version"
)

func main() {
	root := cli.NewRootCmd()

	if err := fang.Execute(
		context.Background(),
		root,
		fang.WithVersion(version.Short()),
		fang.WithNotifySignal(os.Interrupt, os.Kill),
	); err != nil {
		os.Exit(1)
	}
}
