package main

import (
	"github.com/huddlechat/huddle/internal/cli"
	"github.com/huddlechat/huddle/internal/logging"
)

func main() {
	logging.Init()
	cli.Execute()
}
