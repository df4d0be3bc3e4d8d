package main

import (
	"swarabox/cmd"
)

func main() {
	cmd.Execute()
}
