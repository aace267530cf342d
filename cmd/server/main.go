package main

import (
	"github.com/joho/godotenv"

	"evalportal/internal/app/server"
)

func main() {
	_ = godotenv.Load()
	server.Run()
}
