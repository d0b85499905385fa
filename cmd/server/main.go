// Package main is the entry point for the mockapi binary.
//
// MAIN PACKAGE IN GO:
// The main package is kept minimal. Configuration, logging, the database
// and the HTTP server are all set up by the subcommands in internal/cli;
// main only hands control to them.
//
// Usage:
//
//	mockapi serve [--port 8080] [--config mockapi.yaml]
//	mockapi projects
//	mockapi export <project-id> -o shop.yaml
//	mockapi import shop.yaml
package main

import "github.com/sakif/mockapi/internal/cli"

func main() {
	cli.Execute()
}
