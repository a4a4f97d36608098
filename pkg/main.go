package main

import (
	"os"

	"github.com/grafana/grafana-plugin-sdk-go/backend/datasource"
	"github.com/grafana/grafana-plugin-sdk-go/backend/log"
	"github.com/sabio/datlas-chat-plugin/pkg/plugin"
)

func main() {
	// Create plugin
	p := plugin.NewPlugin()

	log.DefaultLogger.Info("Starting DATLAS chat plugin", "id", plugin.ID)

	// Serve plugin
	if err := datasource.Serve(datasource.ServeOpts{
		CallResourceHandler: p,
		CheckHealthHandler:  p,
	}); err != nil {
		log.DefaultLogger.Error("Plugin exited with error", "error", err)
		os.Exit(1)
	}
}
