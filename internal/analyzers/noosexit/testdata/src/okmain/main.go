package main

import "errors"

func run() error { return errors.New("boom") }

func main() {
	if err := run(); err != nil {
		panic(err)
	}
}
