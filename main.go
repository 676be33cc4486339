package main

import "github.com/example/wordbot/cmd"

func main() {
	cmd.Execute()
}
