package main

import "github.com/anbuneel/zenote-sub002/internal/cli"

func main() {
	cli.Execute()
}
