package fn_test

import (
	"testing"

	"github.com/plgd-dev/device-bridge/pkg/fn"
	"github.com/stretchr/testify/require"
)

func TestFuncListExecute(t *testing.T) {
	var order []int
	var l fn.FuncList
	l.AddFunc(func() { order = append(order, 1) })
	l.AddFunc(func() { order = append(order, 2) })
	l.Execute()
	require.Equal(t, []int{2, 1}, order)
}

func TestFuncListToFunction(t *testing.T) {
	var order []int
	var l fn.FuncList
	l.AddFunc(func() { order = append(order, 1) })
	f := l.ToFunction()
	l.AddFunc(func() { order = append(order, 2) })
	f()
	require.Equal(t, []int{1}, order)
}
