package main

import "github.com/mydiff/mydiff/cmd"

func main() {
	cmd.Execute()
}
