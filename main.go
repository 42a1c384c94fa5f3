package main

import "github.com/chew-z/llm-nodes/cmd"

func main() {
	cmd.Execute()
}
