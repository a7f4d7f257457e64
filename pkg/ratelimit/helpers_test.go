package ratelimit_test

import (
	"strconv"

	"github.com/stretchr/testify/mock"
)

func itoa(i int) string { return strconv.Itoa(i) }

func anyArgs(n int) []any {
	args := make([]any, n)
	for i := range args {
		args[i] = mock.Anything
	}
	return args
}
