package main

import "github.com/rustyeddy/barsim/internal/cli"

func main() {
	cli.Execute()
}
