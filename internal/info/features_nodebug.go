//go:build !debug

package info

const debugBuild = false
