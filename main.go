package main

import "github.com/stackaudit/stackaudit/cmd"

func main() {
	cmd.Execute()
}
