package main

import (
	"os"

	"go.withmatt.com/mailcode/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
