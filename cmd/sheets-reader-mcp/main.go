// Command sheets-reader-mcp serves read-only Google Sheets tools over the
// Model Context Protocol.
package main

func main() {
	Execute()
}
