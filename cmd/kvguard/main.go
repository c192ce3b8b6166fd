package main

import "kvguard/cmd/kvguard/cmds"

func main() {
	cmds.Execute()
}
