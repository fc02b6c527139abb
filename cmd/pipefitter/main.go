package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/askiada/pipefitter/internal/cli"
)

func main() {
	if err := cli.Run(context.Background(), os.Args[1:], os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, err)

		var exitErr *cli.ExitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.Code)
		}

		os.Exit(1)
	}
}
