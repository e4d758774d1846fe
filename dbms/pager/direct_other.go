//go:build unix && !linux

package pager

const directFlag = 0
