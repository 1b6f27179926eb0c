package main

import (
	"os"

	"github.com/rs/zerolog/log"
)

func main() {
	err := rootCmd.Execute()
	finish()
	if err != nil {
		log.Error().Err(err).Msg("Command failed")
		os.Exit(1)
	}
}
