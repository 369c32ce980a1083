package main

import "github.com/streamfold/wan-publisher/cmd"

func main() {
	cmd.Execute()
}
