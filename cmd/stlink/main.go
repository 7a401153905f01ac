package main

import "github.com/theg4sh/stlink/cmd/stlink/cmd"

func main() {
	cmd.Execute()
}
