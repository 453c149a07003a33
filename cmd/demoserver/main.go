// Command demoserver starts a local HTTP server with fixed endpoints for
// trying out asyncreq.
// Usage: go run ./cmd/demoserver [port]
// Default port: 9999
package main

import (
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/raysh454/asyncreq/internal/demoserver"
)

func main() {
	cfg := demoserver.DefaultConfig()

	if len(os.Args) > 1 {
		port, err := strconv.Atoi(os.Args[1])
		if err != nil || port < 1 || port > 65535 {
			log.Fatalf("Invalid port: %s", os.Args[1])
		}
		cfg.Port = port
	}

	base := fmt.Sprintf("http://localhost:%d", cfg.Port)
	fmt.Println("===========================================")
	fmt.Println("   asyncreq demo server")
	fmt.Println("===========================================")
	fmt.Println()
	fmt.Println("Endpoints:")
	fmt.Printf("  GET  %s/ok            200 with a small body\n", base)
	fmt.Printf("  ANY  %s/status/{code} responds with {code}\n", base)
	fmt.Printf("  ANY  %s/echo          echoes method, headers and body as JSON\n", base)
	fmt.Printf("  GET  %s/headers       duplicate response headers\n", base)
	fmt.Printf("  GET  %s/slow?ms=500   delayed response\n", base)
	fmt.Println()

	server := demoserver.NewDemoServer(cfg)
	if err := server.Start(); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}
