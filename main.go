package main

import "audiomix/cmd"

func main() {
	cmd.Execute()
}
