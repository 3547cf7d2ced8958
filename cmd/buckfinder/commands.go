package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/IvanShishkin/buckfinder/internal/detector"
	"github.com/IvanShishkin/buckfinder/internal/export"
	"github.com/IvanShishkin/buckfinder/internal/report"
	"github.com/IvanShishkin/buckfinder/internal/server"
	"github.com/IvanShishkin/buckfinder/pkg/models"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// detectCmd creates the detect command
func detectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "detect <image>...",
		Short: "Classify single images and print the results as JSON",
		Long: `Run the detector on each image and print a JSON array of
{path, has_buck, confidence} to stdout. Per-image failures are reported on
stderr and yield a zero-confidence entry.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := setup()
			if err != nil {
				return err
			}
			defer logger.Sync()

			model, err := loadModel(cfg)
			if err != nil {
				fmt.Fprintf(os.Stderr, "%s✗ Model:%s %s\n", colorRed, colorReset, models.Message(err))
				return err
			}
			defer model.Close()

			results := detectAll(newEngine(cfg, model), args, os.Stderr)

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(results); err != nil {
				return fmt.Errorf("failed to encode results: %w", err)
			}
			return nil
		},
	}
}

// detectAll classifies paths in order, reporting each verdict on diag
func detectAll(engine *detector.Engine, paths []string, diag io.Writer) []models.DetectionResult {
	results := make([]models.DetectionResult, 0, len(paths))
	for _, path := range paths {
		result, err := engine.Detect(context.Background(), path)
		name := filepath.Base(path)
		switch {
		case err != nil:
			fmt.Fprintf(diag, "%s⚠ %s:%s %s\n", colorYellow, name, colorReset, models.Message(err))
		case result.HasBuck:
			fmt.Fprintf(diag, "%s✓ %s%s  buck %s\n", colorGreen, name, colorReset, report.FormatConfidence(result.Confidence))
		default:
			fmt.Fprintf(diag, "%s· %s%s  no buck\n", colorGray, name, colorReset)
		}
		results = append(results, result)
	}
	return results
}

// serveCmd creates the serve command
func serveCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the scan API for a local front end",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := setup()
			if err != nil {
				return err
			}
			defer logger.Sync()

			if addr != "" {
				cfg.Server.Addr = addr
			}

			model, err := loadModel(cfg)
			if err != nil {
				printError("Model", models.Message(err))
				return err
			}
			defer model.Close()

			coordinator := newCoordinator(cfg, model)
			srv := server.New(coordinator, export.NewOSExporter(logger), cfg.ModelName(), logger)

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			printMainBanner()
			fmt.Printf("  %sListening:%s http://%s\n\n", colorGray, colorReset, cfg.Server.Addr)

			if err := srv.ListenAndServe(ctx, cfg.Server.Addr); err != nil {
				logger.Error("Server failed", zap.Error(err))
				return err
			}

			coordinator.Cancel()
			return coordinator.Wait(context.Background())
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default: 127.0.0.1:7878)")
	return cmd
}

// saveCmd creates the save command
func saveCmd() *cobra.Command {
	var dest string

	cmd := &cobra.Command{
		Use:   "save --to <folder> <image>...",
		Short: "Copy images into a folder without overwriting",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := setup(); err != nil {
				return err
			}
			defer logger.Sync()

			res, err := export.NewOSExporter(logger).Save(dest, args)
			if err != nil {
				printError("Export failed", models.Message(err))
				return err
			}

			fmt.Println()
			printExport(res)
			return nil
		},
	}

	cmd.Flags().StringVar(&dest, "to", "", "Destination folder")
	cmd.MarkFlagRequired("to")
	return cmd
}

// modelCmd creates the model command
func modelCmd() *cobra.Command {
	var recompile bool

	cmd := &cobra.Command{
		Use:   "model",
		Short: "Show the model in use or rebuild it from its bundle",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := setup()
			if err != nil {
				return err
			}
			defer logger.Sync()

			loader := newLoader(cfg)
			resolve := loader.Resolve
			if recompile {
				resolve = loader.Recompile
			}

			artifact, err := resolve()
			if err != nil {
				printError("Model", models.Message(err))
				return err
			}

			md := artifact.Metadata
			fmt.Println()
			fmt.Printf("  %sName:%s      %s\n", colorGray, colorReset, md.Name)
			fmt.Printf("  %sPath:%s      %s\n", colorGray, colorReset, artifact.Dir)
			fmt.Printf("  %sInput:%s     %dx%d\n", colorGray, colorReset, md.Input.Width, md.Input.Height)
			fmt.Printf("  %sClasses:%s   %d\n", colorGray, colorReset, md.NumClasses())
			fmt.Printf("  %sCompiled:%s  %s\n", colorGray, colorReset, md.CompiledAt.Local().Format("2006-01-02 15:04:05"))
			fmt.Printf("  %sDigest:%s    %s\n", colorGray, colorReset, md.SourceDigest)
			if artifact.Compiled {
				fmt.Printf("\n  %s✓ Model compiled%s\n", colorGreen, colorReset)
			}
			fmt.Println()
			return nil
		},
	}

	cmd.Flags().BoolVar(&recompile, "recompile", false, "Rebuild the compiled model from its bundle")
	return cmd
}
