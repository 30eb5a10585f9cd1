package main

import "github.com/amanat-app/ledger/cmd/amanat/cli"

func main() {
	cli.Execute()
}
