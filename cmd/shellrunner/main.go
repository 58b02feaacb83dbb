package main

import "github.com/Oudwins/shellrunner/cli"

func main() {
	cli.Execute()
}
