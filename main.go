package main

import "github.com/liftedinit/minledger/cmd/minledger"

func main() {
	minledger.Execute()
}
