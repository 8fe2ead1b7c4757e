package main

import (
	"fmt"
	"os"
	"runtime/debug"

	"github.com/quatton/kino/apps/kinoctl/cmd"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "kinoctl crashed: %v\n", r)
			if os.Getenv("KINO_DEBUG") != "" {
				debug.PrintStack()
			}
			os.Exit(2)
		}
	}()

	cmd.Execute()
}
