package main

import (
	"github.com/wahook/app/cmd"
)

// @title wahook API
// @version 1.0
// @description Webhook ingestion and query API for WhatsApp provider events.

// @host  localhost:8000
// @BasePath /

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cmd.Execute()
}
