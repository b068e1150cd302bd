// Package main implements the capforge CLI: a guided generator for SAP CAP
// projects, served as a wizard backend or run as a one-shot build.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

// version information (set via ldflags during build)
var version = "dev"

var cfgPath string

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "capforge",
	Short: "Guided SAP CAP project generator",
	Long: `capforge turns a structured project description into a complete SAP CAP
project: CDS schema, OData services, business logic, Fiori UI, security
descriptors, and deployment configuration.

Run it as a wizard backend with "capforge serve", or generate a project in
one shot from a YAML description with "capforge generate".`,
	Version: version,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "path to config file (YAML)")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(generateCmd)
}
