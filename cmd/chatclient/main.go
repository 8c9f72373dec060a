// Package main provides the terminal chat client binary. It accepts one
// optional positional argument, the server address, defaulting to
// 127.0.0.1:8080.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/cory-johannsen/chatd/internal/client"
	"github.com/cory-johannsen/chatd/internal/config"
)

func main() {
	flag.Parse()

	addr := flag.Arg(0)
	if addr == "" {
		addr = config.DefaultAddr
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c := &client.Client{
		In:  os.Stdin,
		Out: os.Stdout,
	}
	if err := c.Run(ctx, addr); err != nil {
		fmt.Fprintln(os.Stderr, err)
		fmt.Fprintln(os.Stderr, "Make sure the server is running.")
		os.Exit(1)
	}
}
