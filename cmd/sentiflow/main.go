package main

import (
	"os"

	"horse.fit/sentiflow/internal/app"
)

func main() {
	os.Exit(app.Run(os.Args[1:]))
}
