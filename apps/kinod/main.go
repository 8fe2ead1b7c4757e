package main

import "github.com/quatton/kino/apps/kinod/cmd"

func main() {
	cmd.Execute()
}
