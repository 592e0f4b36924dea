package main

import (
	_ "github.com/joho/godotenv/autoload"

	"github.com/pfrederiksen/opencall-events/internal/cli"
)

func main() {
	cli.Execute()
}
