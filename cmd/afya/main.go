// Command afya records and analyses a family's health diary: seizure and
// therapy logs, lab results, transfusions and food reactions. It prints
// JSON to stdout and logs to stderr.
package main

import (
	"fmt"
	"os"
)

var exitFunc = os.Exit

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		exitFunc(exitCode(err))
	}
}
