// lyricsync/main.go
package main

import (
	"fmt"
	"os"

	"lyricsync/cli"
)

func main() {
	if err := cli.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
