package main

import (
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/server"

	"github.com/veilmark/chronicle/internal/mcp"
)

func runMCP(args []string) error {
	if len(args) > 0 {
		return fmt.Errorf("usage: chronicle mcp")
	}

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	srv := mcp.NewServer(mcp.ServerConfig{
		Store:   a.store,
		Engine:  a.engine,
		Version: version,
		Logger:  a.logger,
	})

	// Stdout carries the protocol; announcements go to stderr.
	fmt.Fprintln(os.Stderr, "Chronicle MCP server listening on stdio")
	if err := server.ServeStdio(srv); err != nil {
		return fmt.Errorf("serving MCP: %w", err)
	}
	return nil
}
