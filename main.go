package main

import "mediabridge/cmd"

func main() {
	cmd.Execute()
}
