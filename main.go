package main

import (
	"fmt"
	"os"

	"github.com/cass-tech/storefront/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err.Error())
		os.Exit(1)
	}
}
