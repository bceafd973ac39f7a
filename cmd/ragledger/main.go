package main

import "ragledger/internal/cli"

func main() {
	cli.Execute()
}
