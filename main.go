package main

import "optimus/cmd"

func main() {
	cmd.Execute()
}
