package main

import "tonerelay/cmd/tonectl/command"

func main() {
	command.Execute()
}
