// Package `echocli` implements terminal client for echosrv.
//
// Every line typed into stdin is sent to the server, everything received
// from the server is printed to stdout.
//
//	go run . 127.0.0.1 1234
package main
