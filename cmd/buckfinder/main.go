package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/IvanShishkin/buckfinder/internal/config"
	"github.com/IvanShishkin/buckfinder/internal/core"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ANSI colors
const (
	colorReset  = "\033[0m"
	colorBold   = "\033[1m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[38;5;220m"
	colorGray   = "\033[38;5;245m"
	colorCyan   = "\033[36m"
)

var (
	logger   *zap.Logger
	verbose  bool
	modelDir string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "buckfinder",
		Short: "Buckfinder - find bucks in trail camera photos",
		Long: `Scans folders of trail camera images with a local object detection model
and lists the images that contain a buck.`,
		Version: core.Version,
		Run: func(cmd *cobra.Command, args []string) {
			printMainBanner()
			cmd.Help()
		},
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&modelDir, "model-dir", "", "Directory searched first for the model")

	rootCmd.SetHelpCommand(&cobra.Command{Hidden: true})

	rootCmd.AddCommand(scanCmd())
	rootCmd.AddCommand(detectCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(saveCmd())
	rootCmd.AddCommand(modelCmd())
	rootCmd.AddCommand(helpCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// setup initializes the logger and loads configuration
func setup() (*config.Config, error) {
	var err error
	if verbose {
		logger, err = zap.NewDevelopment()
	} else {
		// Silent logger - only errors
		cfg := zap.Config{
			Level:            zap.NewAtomicLevelAt(zapcore.ErrorLevel),
			Encoding:         "json",
			OutputPaths:      []string{"stderr"},
			ErrorOutputPaths: []string{"stderr"},
			EncoderConfig:    zap.NewProductionEncoderConfig(),
		}
		logger, err = cfg.Build()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		return nil, err
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Error("Failed to load config", zap.Error(err))
		return nil, err
	}
	if modelDir != "" {
		cfg.Model.Dir = modelDir
	}
	return cfg, nil
}

func printMainBanner() {
	fmt.Println()
	fmt.Printf("%s%sbuckfinder%s %sv%s%s\n", colorBold, colorGreen, colorReset, colorGray, core.Version, colorReset)
	fmt.Printf("%sTrail camera buck detector%s\n", colorGray, colorReset)
	fmt.Println()
}

func printBanner(folder string, remote string) {
	printMainBanner()
	fmt.Printf("  %sFolder:%s    %s\n", colorGray, colorReset, folder)
	if remote != "" {
		fmt.Printf("  %sServer:%s    %s\n", colorGray, colorReset, remote)
	}
	fmt.Println()
}

// validateFormat validates the --report flag
func validateFormat(format string) error {
	if format == "" {
		return nil
	}
	valid := []string{"txt", "text", "html", "json", "md", "markdown"}
	for _, f := range valid {
		if f == format {
			return nil
		}
	}
	return fmt.Errorf("--report must be one of: %s (got: %s)", strings.Join(valid, ", "), format)
}

// printError prints a failed operation in the CLI style
func printError(what, msg string) {
	fmt.Printf("\n  %s✗ %s:%s %s\n\n", colorRed, what, colorReset, msg)
}

// helpCmd creates a detailed help command
func helpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "help",
		Short: "Show detailed help and documentation",
		Run: func(cmd *cobra.Command, args []string) {
			printMainBanner()

			fmt.Printf("%s%sCOMMANDS%s\n\n", colorBold, colorGreen, colorReset)
			fmt.Printf("  %sscan <folder>%s        Scan a folder and list images with a buck\n", colorBold, colorReset)
			fmt.Printf("  %sdetect <image>...%s    Run the detector on single images\n", colorBold, colorReset)
			fmt.Printf("  %sserve%s                Serve the scan API for a local front end\n", colorBold, colorReset)
			fmt.Printf("  %ssave --to <dir> <image>...%s  Copy images into a folder\n", colorBold, colorReset)
			fmt.Printf("  %smodel%s                Show or rebuild the compiled model\n", colorBold, colorReset)

			fmt.Printf("\n%s%sSCAN FLAGS%s\n\n", colorBold, colorGreen, colorReset)
			fmt.Printf("  %s--recursive%s          Descend into subfolders\n", colorBold, colorReset)
			fmt.Printf("  %s--extensions%s         Image extensions (default: jpg, jpeg, png)\n", colorBold, colorReset)
			fmt.Printf("  %s--exclude%s            Subfolders to skip when recursive\n", colorBold, colorReset)
			fmt.Printf("  %s--export%s <dir>       Copy matching images into dir when done\n", colorBold, colorReset)
			fmt.Printf("  %s--remote%s <addr>      Run the scan on a buckfinder server\n", colorBold, colorReset)
			fmt.Printf("  %s-r, --report%s <fmt>   Report format: %stxt%s, %shtml%s, %sjson%s, %smd%s\n",
				colorBold, colorReset, colorCyan, colorReset, colorCyan, colorReset, colorCyan, colorReset, colorCyan, colorReset)
			fmt.Printf("  %s-o, --output%s <file>  Report file path\n", colorBold, colorReset)

			fmt.Printf("\n%s%sGLOBAL FLAGS%s\n\n", colorBold, colorGreen, colorReset)
			fmt.Printf("  %s-v, --verbose%s        Enable verbose logging\n", colorBold, colorReset)
			fmt.Printf("  %s--model-dir%s <dir>    Search this directory for the model first\n", colorBold, colorReset)
			fmt.Printf("  %s--version%s            Show version\n", colorBold, colorReset)

			fmt.Printf("\n%s%sEXAMPLES%s\n\n", colorBold, colorGreen, colorReset)
			fmt.Printf("  %s# Scan an SD card%s\n", colorGray, colorReset)
			fmt.Printf("  buckfinder scan /Volumes/CAMERA/DCIM/100MEDIA\n\n")
			fmt.Printf("  %s# Scan and copy the bucks out%s\n", colorGray, colorReset)
			fmt.Printf("  buckfinder scan --export ~/Pictures/bucks /Volumes/CAMERA/DCIM\n\n")
			fmt.Printf("  %s# HTML gallery of matches%s\n", colorGray, colorReset)
			fmt.Printf("  buckfinder scan -r html -o bucks.html ./card\n\n")
			fmt.Printf("  %s# Rebuild the compiled model%s\n", colorGray, colorReset)
			fmt.Printf("  buckfinder model --recompile\n\n")
		},
	}
}
