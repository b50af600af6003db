package main

import "github.com/practiceops/servicecatalog/internal/cli"

func main() {
	cli.Execute()
}
