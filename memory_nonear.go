//go:build !windows && !(linux && amd64)

package oakhook

const canMapNear = false

func mapAt(uintptr, int) bool { return false }
