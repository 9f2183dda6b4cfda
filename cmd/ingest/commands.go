// commands.go
//
// Legal-document search and account portal
// Copyright (c) 2026 Alex Grant <info@localnerve.com> (https://www.localnerve.com), LocalNerve LLC
//
// This file is part of juriiq.
// juriiq is free software: you can redistribute it and/or modify it
// under the terms of the GNU Affero General Public License as published by the Free Software
// Foundation, either version 3 of the License, or (at your option) any later version.
// juriiq is distributed in the hope that it will be useful, but WITHOUT ANY WARRANTY;
// without even the implied warranty of MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.
// See the GNU Affero General Public License for more details.
// You should have received a copy of the GNU Affero General Public License along with juriiq.
// If not, see <https://www.gnu.org/licenses/>.
// Additional terms under GNU AGPL version 3 section 7:
// a) The reasonable legal notice of original copyright and author attribution must be preserved
//    by including the string: "Copyright (c) 2026 Alex Grant <info@localnerve.com> (https://www.localnerve.com), LocalNerve LLC"
//    in this material, copies, or source code of derived works.

package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/localnerve/juriiq/internal/config"
	"github.com/localnerve/juriiq/internal/database"
	"github.com/localnerve/juriiq/internal/ingest"
	"github.com/localnerve/juriiq/internal/logging"
	"github.com/localnerve/juriiq/internal/services"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// env is everything a subcommand needs, built once per invocation
type env struct {
	cfg      *config.Config
	log      *zap.Logger
	db       *gorm.DB
	pipeline *ingest.Pipeline
}

func (e *env) close() {
	if e.db != nil {
		_ = database.Close(e.db)
	}
	_ = e.log.Sync()
}

func newRootCmd() *cobra.Command {
	var envFilename string

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Process legal documents into the search index",
		Long: `Ingest reads .txt, .pdf and .docx files from the input folder, extracts
their text, writes a summary and keywords, and stores them for search.
Processed files move to the done folder, failures to the failed folder.

Configuration comes from the environment, optionally loaded from a .env file.`,
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVarP(&envFilename, "env-file", "f", "", "path to the .env file")

	setup := func() (*env, error) {
		if envFilename != "" {
			if err := godotenv.Load(envFilename); err != nil {
				return nil, fmt.Errorf("failed to load environment variables: %w", err)
			}
		}
		return newEnv()
	}

	cmd.AddCommand(newRunCmd(setup))
	cmd.AddCommand(newWatchCmd(setup))
	cmd.AddCommand(newFailedCmd(setup))
	cmd.AddCommand(newReprocessCmd(setup))
	return cmd
}

func newEnv() (*env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	log, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return nil, err
	}
	e := &env{cfg: cfg, log: log}

	e.db, err = database.Connect(cfg, log)
	if err != nil {
		e.close()
		return nil, err
	}
	if err := database.AutoMigrate(e.db); err != nil {
		e.close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	e.pipeline, err = ingest.NewPipeline(e.db, cfg.Ingestion, log)
	if err != nil {
		e.close()
		return nil, err
	}
	return e, nil
}

type setupFunc func() (*env, error)

func newRunCmd(setup setupFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Process every file waiting in the input folder once",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup()
			if err != nil {
				return err
			}
			defer e.close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			res, err := e.pipeline.Run(ctx, ingest.TriggerCLI)
			if err != nil {
				return err
			}
			if err := printJSON(cmd.OutOrStdout(), res); err != nil {
				return err
			}
			if res.Failed > 0 {
				return fmt.Errorf("%d of %d files failed", res.Failed, res.Discovered)
			}
			return nil
		},
	}
}

func newWatchCmd(setup setupFunc) *cobra.Command {
	var debounce time.Duration

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Process files as they arrive in the input folder",
		Long: `Watch runs once over the files already waiting, then processes new files
as they are written to the input folder until interrupted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup()
			if err != nil {
				return err
			}
			defer e.close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if _, err := e.pipeline.Run(ctx, ingest.TriggerStartup); err != nil && !errors.Is(err, ingest.ErrRunInProgress) {
				return err
			}
			return ingest.NewWatcher(e.pipeline, e.pipeline.InputDir(), debounce, e.log).Run(ctx)
		},
	}
	cmd.Flags().DurationVar(&debounce, "debounce", ingest.DefaultDebounce, "quiet period after the last write before a run")
	return cmd
}

func newFailedCmd(setup setupFunc) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "failed",
		Short: "List documents that failed to process",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup()
			if err != nil {
				return err
			}
			defer e.close()

			docs, err := services.ListFailedDocuments(e.db.WithContext(cmd.Context()), limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, d := range docs {
				reason := ""
				if d.ErrorMessage != nil {
					reason = *d.ErrorMessage
				}
				fmt.Fprintf(out, "%d\t%s\t%s\n", d.ID, d.FileName, reason)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 100, "maximum number of documents to list")
	return cmd
}

func newReprocessCmd(setup setupFunc) *cobra.Command {
	var now bool

	cmd := &cobra.Command{
		Use:   "reprocess <document-id>",
		Short: "Move a failed document back into the input folder",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid document id %q", args[0])
			}

			e, err := setup()
			if err != nil {
				return err
			}
			defer e.close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			doc, err := e.pipeline.Reprocess(ctx, id)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "queued %s\n", doc.FilePath)
			if !now {
				return nil
			}
			res, err := e.pipeline.Run(ctx, ingest.TriggerCLI)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}
	cmd.Flags().BoolVar(&now, "now", false, "run the pipeline right after queueing")
	return cmd
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
