package main

import "github.com/sheetsight/sheetsight/cmd"

func main() {
	cmd.Execute()
}
