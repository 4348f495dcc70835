package main

import (
	"os"

	"socialscope-backend/cmd/socialscope/cmd"
)

func main() {
	baseUrl, ok := os.LookupEnv("SOCIALSCOPE_BASE_URL")
	if !ok {
		baseUrl = "http://localhost:8000"
	}
	cmd.BaseUrl = baseUrl

	cmd.Execute()
}
