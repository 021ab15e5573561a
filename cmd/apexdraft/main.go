// Command apexdraft runs the ApexDraft API server and store tooling.
package main

import "github.com/mesh-intelligence/apexdraft/internal/cli"

func main() {
	cli.Execute()
}
