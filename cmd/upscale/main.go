package main

import "github.com/MeKo-Tech/upscale/cmd/upscale/cmd"

func main() {
	cmd.Execute()
}
