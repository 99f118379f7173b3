// Command xactinfo prints what XACT settings, wave bank and sound bank
// files contain.
package main

import (
	"errors"
	"flag"
	"os"
)

func main() {
	p := &printer{out: os.Stdout, errOut: os.Stderr, level: LogNormal}
	config, err := parseCommandLine(os.Args[1:], os.Stderr)
	if errors.Is(err, flag.ErrHelp) {
		os.Exit(0)
	}
	if err != nil {
		p.Errorf("Error: %v\n", err)
		os.Exit(2)
	}
	p.level = config.level()

	if err := runCLI(config, p); err != nil {
		p.Errorf("Error: %v\n", err)
		os.Exit(1)
	}
}
