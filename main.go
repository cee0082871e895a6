package main

import "github.com/frahmantamala/barangay-procurement/cmd"

func main() {
	cmd.Execute()
}
