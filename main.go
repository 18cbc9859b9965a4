package main

import "github.com/paracelsus/martpipe/cmd"

func main() {
	cmd.Execute()
}
