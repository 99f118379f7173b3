package main

import (
	"fmt"
	"io"
)

// hexDump writes the first n bytes of data as offset, hex and ASCII columns.
func hexDump(w io.Writer, data []byte, n int) {
	if n > len(data) {
		n = len(data)
	}
	fmt.Fprintln(w, "Offset  00 01 02 03 04 05 06 07 08 09 0A 0B 0C 0D 0E 0F  ASCII")
	fmt.Fprintln(w, "------  -----------------------------------------------  ----------------")

	for i := 0; i < n; i += 16 {
		fmt.Fprintf(w, "%06X  ", i)
		for j := 0; j < 16; j++ {
			if i+j < n {
				fmt.Fprintf(w, "%02X ", data[i+j])
			} else {
				fmt.Fprint(w, "   ")
			}
		}

		fmt.Fprint(w, " ")
		for j := 0; j < 16 && i+j < n; j++ {
			b := data[i+j]
			if b >= 32 && b <= 126 {
				fmt.Fprintf(w, "%c", b)
			} else {
				fmt.Fprint(w, ".")
			}
		}
		fmt.Fprintln(w)
	}
}
