// The main package for the gamecatalog executable.
package main

import (
	"os"

	"github.com/JakeFAU/gamecatalog/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
