package main

import (
	"springlink/cmd"
)

func main() {
	cmd.Execute()
}
