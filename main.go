package main

import "github.com/ridoystarlord/tplgen/cmd"

func main() {
	cmd.Execute()
}
