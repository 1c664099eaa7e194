// The main package for the treatycrawl executable.
package main

import (
	"github.com/iiadata/treaty-crawler/cmd"
)

func main() {
	cmd.Execute()
}
