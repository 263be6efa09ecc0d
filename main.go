package main

import "reelscrape/cmd"

func main() {
	cmd.Execute()
}
