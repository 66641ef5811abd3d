// Package main serves sphere localization over HTTP.
package main

import (
	"go.viam.com/utils"

	"go.viam.com/sphereloc/logging"
	"go.viam.com/sphereloc/server"
)

var logger = logging.NewLogger("sphereloc")

func main() {
	utils.ContextualMain(server.RunServer, logger)
}
