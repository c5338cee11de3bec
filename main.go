package main

import "github.com/iksnae/vault-agent/cmd"

func main() {
	cmd.Execute()
}
