package main

import "github.com/forPelevin/replaycast/internal/cli"

func main() {
	cli.Main()
}
