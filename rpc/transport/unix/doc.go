// Package unix implements the Unix domain socket variants of the strom
// transport layer, built on the protocol-agnostic base package. Intended
// for co-located processes where TCP overhead is unnecessary.
package unix
