package main

import "configurablestub/cmd"

func main() {
	cmd.Execute()
}
