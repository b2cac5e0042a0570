// Package main is the entry point for recordgate.
package main

func main() {
	Execute()
}
