package main

import "github.com/kris-hansen/analyst/cmd"

func main() {
	cmd.Execute()
}
