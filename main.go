package main

import "github.com/jghoshh/wellspring/cmd"

func main() {
	cmd.Execute()
}
