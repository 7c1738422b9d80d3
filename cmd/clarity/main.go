package main

import (
	"clarity/internal/di"
	"clarity/internal/structures"
	"errors"
	"fmt"
	"os"

	goflags "github.com/jessevdk/go-flags"
)

func main() {
	var flags structures.CliFlags
	parser := goflags.NewParser(&flags, goflags.Default)
	parser.Name = "clarity"
	parser.LongDescription = "Local cache-aside sync daemon for the TooClarity institution dashboard."

	if _, err := parser.Parse(); err != nil {
		var flagsErr *goflags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == goflags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(2)
	}

	os.Exit(run(&flags))
}

// run blocks until the app stops so deferred cleanup runs before exit.
func run(flags *structures.CliFlags) int {
	_, cleanup, err := di.InitApp(flags)
	if cleanup != nil {
		defer cleanup()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "clarity: %s\n", err)
		return 1
	}
	return 0
}
