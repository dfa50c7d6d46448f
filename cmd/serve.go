package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"configurablestub/internal/models"

	"github.com/spf13/cobra"
)

var (
	serveConfigFile string
	serveHost       string
	serveHttpPort   int
	serveHttpsPort  int
	serveJournal    string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the stub on its HTTP and HTTPS ports",
	Long: `Start the stub.

Configuration is read from --config (or CONFIG_FILE), then STUB_* environment
variables, then the flags below. The HTTPS listener uses a self-signed
certificate generated at start-up.`,
	Example: `  # Start with defaults (http 54988, https 43455)
  configurablestub serve

  # Start from a config file on custom ports
  configurablestub serve --config stub.yaml --http-port 8080 --https-port 8443`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	addServeFlags(serveCmd)
	rootCmd.AddCommand(serveCmd)
}

func addServeFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&serveConfigFile, "config", "c", "", "Path to a YAML configuration file")
	cmd.Flags().StringVar(&serveHost, "host", "", "Address to bind both listeners to")
	cmd.Flags().IntVar(&serveHttpPort, "http-port", 0, "HTTP port")
	cmd.Flags().IntVar(&serveHttpsPort, "https-port", 0, "HTTPS port")
	cmd.Flags().StringVar(&serveJournal, "journal", "", "Enable the request journal at this SQLite path")
}

func runServe(cmd *cobra.Command, args []string) error {
	sm := NewServerManager(serveConfigFile)
	sm.SetOverrides(flagOverrides(cmd))

	ctx, stop := signal.NotifyContext(contextOrBackground(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return sm.Run(ctx)
}

// flagOverrides applies only the flags the user actually set
func flagOverrides(cmd *cobra.Command) func(*models.StubConfig) {
	flags := cmd.Flags()
	return func(cfg *models.StubConfig) {
		if flags.Changed("host") {
			cfg.Server.Host = serveHost
		}
		if flags.Changed("http-port") {
			cfg.Server.HttpPort = serveHttpPort
		}
		if flags.Changed("https-port") {
			cfg.Server.HttpsPort = serveHttpsPort
		}
		if flags.Changed("journal") {
			cfg.Journal.Enabled = true
			cfg.Journal.Path = serveJournal
		}
	}
}
