package main

import "github.com/mvp-joe/typefind/internal/cli"

func main() {
	cli.Execute()
}
