package main

import "evlink/cmd"

func main() {
	cmd.Execute()
}
