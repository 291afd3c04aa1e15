package main

import "github.com/oddslab/parity-arb/cmd"

func main() {
	cmd.Execute()
}
