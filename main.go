package main

import "github.com/rixmerz/muxpilot/cmd"

func main() {
	cmd.Execute()
}
