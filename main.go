package main

import "github.com/parleybot/parley/cmd"

func main() {
	cmd.Execute()
}
