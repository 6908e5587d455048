package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const serviceName = "Pazarglobal WhatsApp Bridge"

var (
	version = "3.0.0"

	logLevel  string
	logFormat string

	// v carries flag bindings into config loading.
	v = viper.New()
)

var rootCmd = &cobra.Command{
	Use:   "bridge",
	Short: "WhatsApp to agent bridge",
	Long: `bridge receives WhatsApp messages from Twilio, stores their images,
forwards the conversation to the agent backend and sends the answer back.`,
	SilenceUsage: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server",
	RunE:  runServe,
}

var lambdaCmd = &cobra.Command{
	Use:   "lambda",
	Short: "Run as an AWS Lambda API Gateway handler",
	RunE:  runLambda,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(_ *cobra.Command, _ []string) {
		fmt.Printf("%s v%s\n", serviceName, version)
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Set log level (debug|info|warn|error) [default: info]")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "Set log format (text|json|logfmt) [default: text]")

	if err := v.BindPFlag("LOG_LEVEL", rootCmd.PersistentFlags().Lookup("log-level")); err != nil {
		fmt.Fprintf(os.Stderr, "Error binding log-level flag: %v\n", err)
		os.Exit(1)
	}
	if err := v.BindPFlag("LOG_FORMAT", rootCmd.PersistentFlags().Lookup("log-format")); err != nil {
		fmt.Fprintf(os.Stderr, "Error binding log-format flag: %v\n", err)
		os.Exit(1)
	}

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(lambdaCmd)
	rootCmd.AddCommand(versionCmd)
}
