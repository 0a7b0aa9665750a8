package main

import "photoclean/cmd"

func main() {
	cmd.Execute()
}
