package main

import "github.com/jgivc/tagsync/internal/cli"

func main() {
	cli.Execute()
}
