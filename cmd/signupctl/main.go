package main

import (
	"os"

	"example.com/mergington/cmd/signupctl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
