package main

import (
	"os"
)

// @title Carrier Engine API
// @version 1.0
// @description Carrier selection, shipment booking, tracking and NDR management for e-commerce orders.
// @contact.name API Support
// @contact.email support@carrierengine.dev
// @license.name MIT
// @host localhost:8080
// @BasePath /
func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
