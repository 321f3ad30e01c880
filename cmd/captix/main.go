package main

import "github.com/bryanchriswhite/captix/cmd/captix/commands"

func main() {
	commands.Execute()
}
