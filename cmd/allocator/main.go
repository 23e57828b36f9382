// Package main is the allocator command line tool.
package main

import "github.com/aristath/allocator/internal/cli"

func main() {
	cli.Execute()
}
