package main

import "github.com/ryabkov82/table-merger/internal/cli"

func main() {
	cli.Execute()
}
