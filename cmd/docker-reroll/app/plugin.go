package app

import (
	"encoding/json"
	"io"
)

const (
	// pluginName is the word docker passes to a plugin to name the
	// subcommand it is running, e.g. 'docker --context prod reroll web'.
	pluginName = "reroll"
	// metadataCommand is how docker asks a plugin to describe itself.
	metadataCommand = "docker-cli-plugin-metadata"
)

// Version is the plugin version reported to docker.
var Version = "1.0.0"

type pluginMetadata struct {
	SchemaVersion    string
	Vendor           string
	Version          string
	ShortDescription string
}

func writeMetadata(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(pluginMetadata{
		SchemaVersion:    "0.1.0",
		Vendor:           "ngrok",
		Version:          Version,
		ShortDescription: "Restart compose service with no downtime",
	})
}

// splitPluginArgs separates docker global arguments, which precede the plugin
// name, from the plugin's own arguments. Without the plugin name everything
// belongs to the plugin.
func splitPluginArgs(args []string) (dockerArgs, pluginArgs []string) {
	for i, arg := range args {
		if arg == pluginName {
			return append([]string{}, args[:i]...), append([]string{}, args[i+1:]...)
		}
	}
	return nil, args
}
