// Package main is the entrypoint of webrtc-session-service (HTTP + WebSocket).
package main

import (
	"log"

	"github.com/psds-microservice/webrtc-session-service/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
