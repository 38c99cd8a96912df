// Clankers keeps a fleet of offline-mode players connected to a Minecraft
// server and has them chat on a fixed interval.
package main

import (
	"os"

	"github.com/clankers-project/clankers/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
