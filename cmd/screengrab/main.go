package main

import (
	"context"
	"fmt"
	"os"

	"github.com/screengrab/backend/internal/app"
)

func main() {
	if err := app.Run(context.Background(), os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "screengrab: %v\n", err)
		os.Exit(1)
	}
}
