package main

import "github.com/safeedit/safeedit/internal/cli"

func main() {
	cli.Execute()
}
