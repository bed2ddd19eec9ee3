package main

import "github.com/Mohsinsiddi/w3tx/cmd"

func main() {
	cmd.Execute()
}
