package main

import "github.com/rgeissen/uderia-sub003/cmd"

func main() {
	cmd.Execute()
}
