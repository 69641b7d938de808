package main

import "zchain/cmd"

func main() {
	cmd.Execute()
}
