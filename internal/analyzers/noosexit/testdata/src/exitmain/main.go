package main

import (
	"os"
	sys "os"
)

func main() {
	if len(os.Args) > 3 {
		os.Exit(2) // want `do not call os.Exit inside main`
	}
	sys.Exit(1) // want `do not call os.Exit inside main`
}

func helper() {
	os.Exit(3)
}
