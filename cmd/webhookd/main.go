package main

import (
	"os"

	"telnyx-webhooks/internal/app"
)

func main() {
	if err := app.Run(); err != nil {
		os.Exit(1)
	}
}
