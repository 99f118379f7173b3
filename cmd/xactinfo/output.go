package main

import (
	"fmt"
	"io"
)

// LogLevel represents different levels of output
type LogLevel int

const (
	LogQuiet   LogLevel = iota // Only errors and essential output
	LogNormal                  // Standard output
	LogVerbose                 // Detailed output
)

// printer writes output filtered by verbosity.
type printer struct {
	out, errOut io.Writer
	level       LogLevel
}

func (p *printer) printf(level LogLevel, format string, args ...any) {
	if level <= p.level {
		fmt.Fprintf(p.out, format, args...)
	}
}

// Infof prints normal information (respects quiet mode)
func (p *printer) Infof(format string, args ...any) { p.printf(LogNormal, format, args...) }

// Verbosef prints detail shown only with -verbose
func (p *printer) Verbosef(format string, args ...any) { p.printf(LogVerbose, format, args...) }

// Resultf prints output that is shown even in quiet mode
func (p *printer) Resultf(format string, args ...any) { p.printf(LogQuiet, format, args...) }

// Errorf always prints to the error stream
func (p *printer) Errorf(format string, args ...any) {
	fmt.Fprintf(p.errOut, format, args...)
}
