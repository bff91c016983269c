package main

import "github.com/metal-toolbox/sumflash/cmd"

func main() {
	cmd.Execute()
}
