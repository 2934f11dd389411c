package main

import "github.com/CraigKelly/greta/cmd"

func main() {
	cmd.Execute()
}
