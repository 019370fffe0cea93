// Procflow runs demo proc networks from the command line.
package main

func main() {
	Execute()
}
