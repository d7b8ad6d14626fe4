package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/mr-joshcrane/geminidev"
)

// commit is shorthand for "geminidev commit".
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := geminidev.Run(ctx, append([]string{"commit"}, os.Args[1:]...), os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}
