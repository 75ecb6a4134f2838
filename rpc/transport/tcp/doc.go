// Package tcp implements the TCP variants of the strom transport layer:
// a reconnecting client transport and a frame server, both built on the
// protocol-agnostic base package.
package tcp
