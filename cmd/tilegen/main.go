// Command tilegen is the CLI entry point for the OSM-to-vector-tile
// generation engine.
package main

import "github.com/MeKo-Tech/tilegen/internal/cmd"

func main() {
	cmd.Execute()
}
