package main

import (
	"log"
	"os"
)

func main() {
	log.SetOutput(os.Stdout)
	log.SetPrefix("billiardd ")
	log.SetFlags(log.LstdFlags)

	Execute()
}
