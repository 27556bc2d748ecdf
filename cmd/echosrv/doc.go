// Package `echosrv` implements TCP echo/broadcast server application.
//
// Every received chunk is printed to stdout with "[ip:port] " prefix and then,
// depending on options, sent back to its sender (-e), sent to all connected clients (-b)
// or dropped. Press Ctrl-C to stop the server.
//
// To compile server locally, run from package directory:
//
//	go install .
//
// Or quickly launch server on port 1234 in broadcast mode:
//
//	go run . 1234 -b
package main
