package main

import (
	"log"

	"binary-processor/internal/infrastructure/httpapi"
)

func main() {
	log.Fatal(httpapi.ListenAndServe(":8400"))
}
