// Command mwsidx builds, inspects and queries MathWebSearch index directories.
//
//	mwsidx build --index-dir idx harvests/
//	mwsidx query --index-dir idx 'apply(csymbol:plus, ?a, ?a)'
//	mwsidx stats --index-dir idx
//
// Settings come from an optional YAML file (--config), MWS_* environment
// variables and flags, in increasing order of precedence.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "mwsidx:", err)
		os.Exit(1)
	}
}
