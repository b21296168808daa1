package main

import (
	"github.com/streamgate-io/streamgate/cmd"
	_ "go.uber.org/automaxprocs"
)

func main() {
	cmd.Execute()
}
