//go:build race

package tag

const race = true
