package main

import "github.com/marcus/taskflow/cmd/taskflow/commands"

func main() {
	commands.Execute()
}
