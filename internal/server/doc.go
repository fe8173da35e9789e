// Package server hosts the relay hub over HTTP and WebSocket.
//
// The implementation is organized into files for configuration, logging,
// origin checks, the per-connection client pumps, routing, and HTTP
// lifecycle. The hub itself lives in package relay; this package only
// translates sockets into relay transports.
package server
