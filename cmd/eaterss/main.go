package main

import (
	"log"
	"os"

	"eaterss"
)

func main() {
	if err := eaterss.Run(os.Args[1:], os.Stdout); err != nil {
		log.Fatal(err)
	}
}
