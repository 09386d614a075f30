package main

import "github.com/abiscan/abicore/cmd"

func main() {
	cmd.Execute()
}
