package main

import "kleiderkammer/cmd/kkctl/commands"

func main() {
	commands.Execute()
}
