// Command runwatch runs the progress and notification service.
package main

import (
	"go.uber.org/automaxprocs/maxprocs"

	"github.com/JakeFAU/runwatch/cmd"
)

func main() {
	_, _ = maxprocs.Set()
	cmd.Execute()
}
