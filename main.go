package main

import "basemusic/cmd"

func main() {
	cmd.Execute()
}
