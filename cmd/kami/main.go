package main

import "github.com/KeaPin/kami/internal/cli"

func main() {
	cli.Execute()
}
