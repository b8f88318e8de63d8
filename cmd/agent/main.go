package main

import "draftcrane-agent/internal/cli"

func main() {
	cli.Execute()
}
