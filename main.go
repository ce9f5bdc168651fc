package main

import "github.com/Manu343726/framevars/cmd"

func main() {
	cmd.Execute()
}
