package main

import "github.com/vietddude/locator/internal/cli"

func main() {
	cli.Execute()
}
