package main

import (
	"github.com/sidkik/reposync/cmd"
	"github.com/sidkik/reposync/cmd/util"
)

func main() {
	defer util.HandlePanic()
	cmd.Execute()
}
