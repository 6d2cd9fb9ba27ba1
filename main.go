package main

import "github.com/video-stream/transcut/cmd"

func main() {
	cmd.Execute()
}
