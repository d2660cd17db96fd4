// Package main is the entry point for the postbrowser CLI.
package main

import "github.com/basecamp/postbrowser/internal/cli"

func main() {
	cli.Execute()
}
