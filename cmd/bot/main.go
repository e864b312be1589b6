package main

import (
	"fmt"
	"os"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "guildkeep: %v\n", err)
		os.Exit(1)
	}
}
