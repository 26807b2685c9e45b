// Package main is the entry point of the arxivshorts pipeline.
package main

import "arxivshorts/cmd"

func main() {
	cmd.Execute()
}
