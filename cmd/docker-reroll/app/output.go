package app

import (
	"fmt"
	"io"

	"github.com/fatih/color"
)

type formatter func(format string, a ...interface{}) string

var (
	successString formatter = color.GreenString
	failureString formatter = color.RedString
)

func printStatus(w io.Writer, service string, err error) {
	if err != nil {
		fmt.Fprintln(w, failureString("reroll of %s failed: %v", service, err))
		return
	}
	fmt.Fprintln(w, successString("rerolled %s", service))
}
