// Package fake provides in-process providers for local runs and tests:
// a hashing embedder, an echo generator, a brute-force index and a chat log.
// None of them talk to the network.
package fake
