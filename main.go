package main

import (
	"github.com/defisafe/hotwallet/cmd"
)

func main() {
	cmd.Execute()
}
