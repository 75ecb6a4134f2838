package main

import "github.com/stromnet/strom/cmd"

func main() {
	cmd.Execute()
}
