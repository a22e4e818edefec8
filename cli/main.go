package main

import "github.com/gothtr/gitbrowser/cli/cmd"

func main() {
	cmd.Execute()
}
