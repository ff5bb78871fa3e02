package main

import (
	"webtoondl/cmd"

	_ "webtoondl/sites" // registers the site plugins
)

func main() {
	cmd.Execute()
}
