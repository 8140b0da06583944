package main

import (
	"github.com/huddlemesh/huddle/cmd"
	"github.com/huddlemesh/huddle/internal/logging"
)

func main() {
	// Initialize logging
	logging.Init()
	cmd.Execute()
}
