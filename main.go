package main

import "commitclock/cmd"

func main() {
	cmd.Execute()
}
