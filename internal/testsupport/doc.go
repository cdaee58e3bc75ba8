// Package testsupport holds helpers shared by package and command tests:
// temp-directory configs, stub binaries, and pre-opened stores.
package testsupport
