package main

import "github.com/PhilHem/log-sentinel/backend/cli"

func main() {
	cli.Execute()
}
