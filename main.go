package main

import "xforge/internal/xforge"

func main() {
	xforge.Main()
}
