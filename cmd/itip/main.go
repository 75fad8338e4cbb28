package main

import (
	"fmt"
	"os"
)

const version = "0.1.0"

func main() {
	if err := newApp(os.Stdout).Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}
