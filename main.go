package main

import "github.com/mjenner/nodegate/cmd"

func main() {
	cmd.Execute()
}
