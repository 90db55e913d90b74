package main

import (
	"log"

	"github.com/questlabs/interviewd/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
