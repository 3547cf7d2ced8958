package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/IvanShishkin/buckfinder/internal/config"
	"github.com/IvanShishkin/buckfinder/internal/core"
	"github.com/IvanShishkin/buckfinder/internal/export"
	"github.com/IvanShishkin/buckfinder/internal/filesystem"
	"github.com/IvanShishkin/buckfinder/internal/poller"
	"github.com/IvanShishkin/buckfinder/internal/report"
	"github.com/IvanShishkin/buckfinder/internal/server"
	"github.com/IvanShishkin/buckfinder/pkg/models"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// scanCmd creates the scan command
func scanCmd() *cobra.Command {
	var (
		recursive    bool
		extensions   []string
		exclude      []string
		exportDir    string
		remote       string
		reportFormat string
		outputFile   string
	)

	cmd := &cobra.Command{
		Use:   "scan <folder>",
		Short: "Scan a folder for images with a buck",
		Long:  `Run the detector on every image in a folder and list the ones with a buck.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			folder := args[0]

			if err := validateFormat(reportFormat); err != nil {
				printError("Invalid parameter", err.Error())
				return err
			}

			cfg, err := setup()
			if err != nil {
				return err
			}
			defer logger.Sync()

			if recursive {
				cfg.Scan.Recursive = true
			}
			if len(extensions) > 0 {
				cfg.Scan.Extensions = extensions
			}
			if len(exclude) > 0 {
				cfg.Scan.Exclude = exclude
			}
			if reportFormat != "" {
				cfg.ReportFormat = reportFormat
			}
			if outputFile != "" {
				cfg.OutputFile = outputFile
			}

			printBanner(folder, remote)

			var sess scanSession
			if remote != "" {
				sess, err = newRemoteSession(remote)
			} else {
				sess, err = newLocalSession(cfg)
			}
			if err != nil {
				printError("Setup failed", models.Message(err))
				return err
			}
			defer sess.Close()

			summary, err := runScan(cfg, sess, folder)
			if err != nil {
				printError("Scan failed", models.Message(err))
				return err
			}

			gen := report.NewGenerator(cfg, logger)
			reportPath, err := gen.Generate(summary)
			if err != nil {
				logger.Error("Report failed", zap.Error(err))
				return err
			}
			if reportPath != "" {
				fmt.Printf("  %sReport:%s    %s%s%s\n\n", colorGray, colorReset, colorGreen, reportPath, colorReset)
			}

			if exportDir != "" && len(summary.Matches) > 0 {
				paths := make([]string, len(summary.Matches))
				for i, m := range summary.Matches {
					paths[i] = m.Path
				}
				res, err := sess.Save(exportDir, paths)
				if err != nil {
					printError("Export failed", models.Message(err))
					return err
				}
				printExport(res)
			}

			return nil
		},
	}

	cmd.Flags().BoolVar(&recursive, "recursive", false, "Descend into subfolders")
	cmd.Flags().StringSliceVar(&extensions, "extensions", nil, "Image extensions to scan (comma-separated)")
	cmd.Flags().StringSliceVar(&exclude, "exclude", nil, "Subfolders to skip when recursive (comma-separated)")
	cmd.Flags().StringVar(&exportDir, "export", "", "Copy matching images into this folder when the scan ends")
	cmd.Flags().StringVar(&remote, "remote", "", "Address of a buckfinder server to run the scan on")
	cmd.Flags().StringVarP(&reportFormat, "report", "r", "", "Report format: txt, html, json, md (default: console output)")
	cmd.Flags().StringVarP(&outputFile, "output", "o", "", "Report file path")

	return cmd
}

// scanSession is the scan surface, either in process or on a server
type scanSession interface {
	Start(folder string) (models.ScanStart, error)
	Progress(ctx context.Context) (models.ScanProgress, error)
	Cancel() bool
	Summary(folder string, started time.Time, last models.ScanProgress) *models.ScanSummary
	Save(dest string, paths []string) (*models.ExportResult, error)
	Close() error
}

// runScan starts a scan and polls it to completion. Ctrl-C cancels the job;
// polling continues until it reports the cancelled snapshot.
func runScan(cfg *config.Config, sess scanSession, folder string) (*models.ScanSummary, error) {
	started := time.Now()
	start, err := sess.Start(folder)
	if err != nil {
		return nil, err
	}

	fmt.Printf("  %sImages:%s    %d\n", colorGray, colorReset, start.TotalImages)

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-sigCtx.Done():
			if sess.Cancel() {
				fmt.Printf("\n  %sCancelling...%s\n\n", colorYellow, colorReset)
			}
		case <-done:
		}
	}()

	p := poller.New(cfg.Poll.Interval, cfg.Poll.Backoff, logger)
	drawn := false
	last, err := p.Run(context.Background(), sess.Progress, func(snap models.ScanProgress) {
		if snap.ScanID != start.ScanID {
			return
		}
		if drawn {
			fmt.Print("\033[1A\033[K")
		}
		drawn = true
		printProgress(snap)
	})
	if err != nil {
		return nil, err
	}
	if last.Status == models.StatusError {
		return nil, fmt.Errorf("%s", last.Error)
	}

	return sess.Summary(folder, started, last), nil
}

func printProgress(p models.ScanProgress) {
	const barWidth = 30
	filled := 0
	if p.Total > 0 {
		filled = barWidth * p.Processed / p.Total
	}
	bar := strings.Repeat("█", filled) + strings.Repeat("░", barWidth-filled)
	fmt.Printf("  %sScanning:%s  [%s%s%s] %s%.1f%%%s (%d/%d) %s%d found%s\n",
		colorGray, colorReset, colorGreen, bar, colorReset, colorGreen, p.Percent(), colorReset,
		p.Processed, p.Total, colorBold, len(p.BuckImages), colorReset)
}

func printExport(res *models.ExportResult) {
	fmt.Printf("  %s✓ %s%s %s(%s)%s\n", colorGreen, res.Message, colorReset, colorGray, filesystem.FormatSize(res.Bytes), colorReset)
	for _, f := range res.Failed {
		fmt.Printf("  %s⚠ %s:%s %s\n", colorYellow, f.Path, colorReset, f.Error)
	}
	fmt.Println()
}

// localSession runs the scan in this process
type localSession struct {
	coordinator *core.Coordinator
	exporter    *export.Exporter
	close       func() error
}

func newLocalSession(cfg *config.Config) (*localSession, error) {
	model, err := loadModel(cfg)
	if err != nil {
		return nil, err
	}
	return &localSession{
		coordinator: newCoordinator(cfg, model),
		exporter:    export.NewOSExporter(logger),
		close:       model.Close,
	}, nil
}

func (s *localSession) Start(folder string) (models.ScanStart, error) {
	return s.coordinator.StartScan(folder)
}

func (s *localSession) Progress(context.Context) (models.ScanProgress, error) {
	return s.coordinator.GetProgress(), nil
}

func (s *localSession) Cancel() bool {
	return s.coordinator.Cancel()
}

func (s *localSession) Summary(string, time.Time, models.ScanProgress) *models.ScanSummary {
	return s.coordinator.Summary()
}

func (s *localSession) Save(dest string, paths []string) (*models.ExportResult, error) {
	return s.exporter.Save(dest, paths)
}

func (s *localSession) Close() error {
	// Let an interrupted job finish its in-flight image before the network goes away
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	s.coordinator.Cancel()
	if err := s.coordinator.Wait(ctx); err != nil {
		return err
	}
	return s.close()
}

// remoteSession runs the scan on a buckfinder server
type remoteSession struct {
	client *server.Client
}

func newRemoteSession(addr string) (*remoteSession, error) {
	c := server.NewClient(addr)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	model, err := c.Health(ctx)
	if err != nil {
		return nil, fmt.Errorf("server %s is not reachable: %w", addr, err)
	}
	logger.Info("Connected to server", zap.String("addr", addr), zap.String("model", model))

	return &remoteSession{client: c}, nil
}

func (s *remoteSession) Start(folder string) (models.ScanStart, error) {
	return s.client.StartScan(context.Background(), folder)
}

func (s *remoteSession) Progress(ctx context.Context) (models.ScanProgress, error) {
	return s.client.Progress(ctx)
}

func (s *remoteSession) Cancel() bool {
	ok, err := s.client.Cancel(context.Background())
	if err != nil {
		logger.Warn("Cancel request failed", zap.Error(err))
	}
	return ok
}

func (s *remoteSession) Summary(folder string, started time.Time, last models.ScanProgress) *models.ScanSummary {
	end := time.Now()
	return &models.ScanSummary{
		ScanID:      last.ScanID,
		ScanPath:    folder,
		StartTime:   started,
		EndTime:     end,
		Duration:    end.Sub(started),
		TotalImages: last.Total,
		Processed:   last.Processed,
		Cancelled:   last.Cancelled,
		Matches:     models.RankByConfidence(last.BuckImages),
		Failed:      last.Failed,
		Version:     core.Version,
	}
}

func (s *remoteSession) Save(dest string, paths []string) (*models.ExportResult, error) {
	return s.client.Save(context.Background(), dest, paths)
}

func (s *remoteSession) Close() error {
	return nil
}
