// Command monty serves a demo application built on the monty framework.
package main

func main() {
	Execute()
}
