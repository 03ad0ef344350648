// Command crystalsets imports, inspects, summarizes and exports crystal
// structure record stores.
package main

func main() {
	Execute()
}
