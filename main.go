package main

import (
	"github.com/tagherald/tagherald/cmd"
)

func main() {
	cmd.Execute()
}
