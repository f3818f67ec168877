//go:build !relayframe_unlimited_threads

package info

const unlimitedThreads = false
