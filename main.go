package main

import "github.com/aforren1/replan-2finger/cmd"

func main() {
	cmd.Execute()
}
