package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"tracklistify/internal/config"
	"tracklistify/internal/logger"
	"tracklistify/internal/output"
	"tracklistify/internal/pipeline"
	"tracklistify/internal/progress"
	"tracklistify/internal/shutdown"
	"tracklistify/pkg/utils"
)

func newIdentifyCommand(opts *rootOptions) *cobra.Command {
	var (
		format    string
		outputDir string
	)

	cmd := &cobra.Command{
		Use:   "identify <mix-url-or-file>",
		Short: "Segment a mix recording and identify its tracks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			if format != "" {
				cfg.OutputFormat = format
			}
			if outputDir != "" {
				cfg.OutputDir = config.ExpandHome(outputDir)
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("configuration error: %w", err)
			}
			return runIdentify(cfg, args[0])
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "", "Tracklist format: json, markdown, m3u, or all")
	cmd.Flags().StringVarP(&outputDir, "output-dir", "o", "", "Directory for generated tracklists")
	return cmd
}

func runIdentify(cfg config.Config, input string) error {
	sh := shutdown.New()
	sh.Listen()
	defer sh.Wait()

	log := logger.New(cfg.Verbose)
	defer log.Close()

	// In normal mode the console shows the progress bar; detail goes to
	// a timestamped log file.
	if !cfg.Verbose {
		logDir := config.GetDefaultLogPath()
		if err := os.MkdirAll(logDir, 0755); err != nil {
			fmt.Fprintf(os.Stderr, "[WARN] Failed to create log directory: %v\n", err)
		} else {
			logFile := filepath.Join(logDir, fmt.Sprintf("tracklistify_%s.log", time.Now().Format("2006-01-02_15-04-05")))
			if err := log.SetFileLog(logFile); err != nil {
				fmt.Fprintf(os.Stderr, "[WARN] Failed to setup file logging: %v\n", err)
			} else {
				log.Debug("Logging to file: %s", logFile)
			}
		}
	}

	tmpDir, err := utils.CreateTempDir()
	if err != nil {
		return fmt.Errorf("error creating temporary folder: %w", err)
	}
	log.Debug("Temporary folder: %s", tmpDir)

	sh.AddCleanup(func() {
		log.Debug("Cleaning up...")
		if err := utils.Cleanup(tmpDir); err != nil {
			log.Warn("Error during cleanup: %v", err)
		}
	})

	var bar *progress.Bar
	hooks := pipeline.Hooks{
		OnWindowsPlanned: func(total int) {
			if !cfg.Verbose {
				bar = progress.New("Analyzing segments", total)
				log.SetProgressBar(true)
			}
		},
		OnSegment: func(done, total int) {
			if bar != nil {
				bar.Set(done)
			}
		},
	}

	outcome, err := pipeline.Run(sh.Context(), cfg, log, input, tmpDir, hooks)

	if bar != nil {
		bar.Finish()
		log.SetProgressBar(false)
	}

	if err != nil {
		return err
	}

	fmt.Println()
	fmt.Println(output.RenderTable(outcome.Results))
	for _, f := range outcome.Files {
		log.Info("Tracklist saved: %s", f)
	}
	log.Info("=== Identification completed: %d tracks ===", len(outcome.Results))
	return nil
}
