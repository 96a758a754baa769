package cmd

import (
	"context"
	"evlink/chargepoint"
	"evlink/internal"
	"evlink/internal/config"
	"evlink/metrics"
	"evlink/server"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

var (
	configFile    string
	chargePointId string
	centralUrl    string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "evlink",
	Short: "OCPP 1.6 central system and charge point simulator",
}

var centralCmd = &cobra.Command{
	Use:   "central",
	Short: "Run the central system",
	Long: `Run the central system: charge points connect to /ocpp/<id>,
the administrative api triggers remote start and stop.`,
	RunE: runCentral,
}

var chargePointCmd = &cobra.Command{
	Use:   "chargepoint",
	Short: "Run a simulated charge point",
	Long: `Run a simulated charge point connected to the central system.

Examples:
  # Connect as CP7 to a local central system
  evlink chargepoint --id CP7 --url ws://localhost:8080/ocpp`,
	RunE: runChargePoint,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "config.yml", "Path to configuration file")
	chargePointCmd.Flags().StringVar(&chargePointId, "id", "", "Charge point id, overrides configuration")
	chargePointCmd.Flags().StringVar(&centralUrl, "url", "", "Central system websocket url, overrides configuration")
	rootCmd.AddCommand(centralCmd)
	rootCmd.AddCommand(chargePointCmd)
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	rootCmd.SilenceUsage = true
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func runCentral(_ *cobra.Command, _ []string) error {
	conf, err := config.GetConfig(configFile)
	if err != nil {
		return fmt.Errorf("configuration: %w", err)
	}

	go func() {
		if err := metrics.Listen(conf); err != nil {
			log.Println("metrics server failed", err)
		}
	}()

	centralSystem, err := server.NewCentralSystem(conf)
	if err != nil {
		return fmt.Errorf("central system initialization failed: %w", err)
	}

	ctx, stop := signalContext()
	defer stop()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		centralSystem.Shutdown(shutdownCtx)
	}()
	return centralSystem.Start()
}

func runChargePoint(_ *cobra.Command, _ []string) error {
	conf, err := config.GetConfig(configFile)
	if err != nil {
		return fmt.Errorf("configuration: %w", err)
	}
	settings := chargepoint.SettingsFromConfig(conf)
	if chargePointId != "" {
		settings.Id = chargePointId
	}
	if centralUrl != "" {
		settings.CentralUrl = centralUrl
	}

	logger := internal.NewLogger()
	logger.SetDebugMode(conf.IsDebug)

	ctx, stop := signalContext()
	defer stop()
	client := chargepoint.NewClient(settings, logger)
	if err = client.Connect(ctx); err != nil {
		return err
	}
	return client.Run(ctx)
}
