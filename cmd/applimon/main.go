package main

import "applimon/internal/cli"

func main() {
	cli.Execute()
}
