// Package preflight provides the readiness checks behind "sieve doctor":
// external binaries, directory permissions, and whether the signature store
// can be read right now.
package preflight
