package main

import (
	"errors"
	"log"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		if errors.Is(err, errDenied) {
			os.Exit(1)
		}
		log.Fatalf("Application error: %v", err)
	}
}
