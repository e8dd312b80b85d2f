// Command demoserver starts a mock affiliate marketplace for trying OfferLens
// against live sources without network access.
// Usage: go run ./cmd/demoserver [port]
// Default port: 9999
package main

import (
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/raysh454/offerlens/internal/demoserver"
	"github.com/raysh454/offerlens/internal/logging"
)

func main() {
	cfg := demoserver.DefaultConfig()

	// Optional: custom port from command line
	if len(os.Args) > 1 {
		port, err := strconv.Atoi(os.Args[1])
		if err != nil || port < 1 || port > 65535 {
			log.Fatalf("Invalid port: %s", os.Args[1])
		}
		cfg.Port = port
	}

	fmt.Println("===========================================")
	fmt.Println("   OfferLens Demo Marketplace")
	fmt.Println("===========================================")
	fmt.Println()
	fmt.Println("Point OfferLens at this server to validate offers")
	fmt.Println("against live product data:")
	fmt.Println()
	fmt.Printf("  sources:\n    clickbank_api: http://localhost:%d\n    amazon_base: http://localhost:%d\n", cfg.Port, cfg.Port)
	fmt.Println()
	fmt.Println("Products:")
	for _, p := range demoserver.GetAllProducts() {
		fmt.Printf("  - %-22s %s\n", p.Key(), p.Description)
	}
	fmt.Println()

	server := demoserver.NewDemoServer(cfg, logging.NewStdoutLogger("demoserver"))
	if err := server.Start(); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}
