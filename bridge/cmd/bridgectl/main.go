package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
)

func main() {
	if err := Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "\n%s %v\n\n", color.RedString("Error:"), err)
		os.Exit(1)
	}
}
