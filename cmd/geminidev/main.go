package main

import (
	"os"

	"github.com/mr-joshcrane/geminidev"
)

func main() {
	os.Exit(geminidev.Main())
}
