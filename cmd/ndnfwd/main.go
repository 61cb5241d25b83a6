package main

import (
	"github.com/ndn-go/fw/cmd"
)

func main() {
	cmd.CmdNdnfwd.Execute()
}
