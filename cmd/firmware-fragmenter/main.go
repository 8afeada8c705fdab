package main

import "github.com/oshokin/firmware-fragmenter/cmd/firmware-fragmenter/cmd"

func main() {
	cmd.Execute()
}
