// Package main provides the speakerid CLI tool.
//
// Usage:
//
//	speakerid [flags] <command> [args]
//
// Commands:
//
//	enroll     - Train and store a speaker model from audio
//	recognize  - Identify the speaker of an audio file
//	speakers   - List, show and delete enrolled speakers
//	live       - Recognize speakers from the microphone
//	serve      - Serve the HTTP/WebSocket API
//	config     - Configuration management
//
// Configuration:
//
//	The CLI stores configuration in ~/.giztoy/speakerid/
//	Use 'speakerid config' commands to manage contexts.
package main

import (
	"fmt"
	"os"

	"github.com/haivivi/speakerid/cmd/speakerid/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
