package main

import "github.com/nfrund/relay/cmd/relay/cmd"

func main() {
	cmd.Execute()
}
