// Kartta - local-first cloud resource discovery and enrichment.
// Discover. Enrich. Sync.
package main

func main() {
	Execute()
}
