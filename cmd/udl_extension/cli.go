package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/udl/extension/internal/bridge"
	"github.com/udl/extension/internal/config"
	"github.com/udl/extension/internal/database"
	"github.com/udl/extension/internal/extension"
	"github.com/udl/extension/internal/sighting"
	gormstorage "github.com/udl/extension/internal/storage/gorm"
	"github.com/udl/extension/internal/storage/memory"
	"github.com/udl/extension/internal/telemetry"
)

var configPath string

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "udl-extension",
		Short:         "Drone and AR marker block extensions for the UDL editor",
		Version:       fmt.Sprintf("%s (built %s)", CurrentExtensionVersion, BuildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if err := loadConfig(); err != nil {
				Logger.Warn("Failed to load config, using defaults!", "error", err)
			}
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to "+config.FileName+" (default: working directory)")

	root.AddCommand(newServeCmd(), newInfoCmd(), newExportCmd())
	return root
}

func loadConfig() error {
	if configPath != "" {
		return config.LoadFile(configPath)
	}
	return config.Load(".")
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Connect to the bridge and serve the block editor",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
}

func newInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Print the block declarations as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := json.MarshalIndent(blockInfos(bridge.Unit(config.GetBridgeConfig().Unit)), "", "  ")
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return err
		},
	}
}

// blockInfos declares both extensions without a bridge behind them.
func blockInfos(unit bridge.Unit) any {
	return extension.Infos(
		extension.NewTello(nil, telemetry.NewCache(), unit, nil, Logger),
		extension.NewCamera(nil, sighting.New(nil), 0, nil, Logger),
	)
}

func newExportCmd() *cobra.Command {
	var (
		dbPath   string
		session  string
		outDir   string
		compress bool
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export a recorded flight log from a database as JSON",
		Long: "Without --session the recorded sessions are listed. --db reads a SQLite " +
			"dump or every dump in a directory; otherwise the configured Postgres " +
			"database is used.",
		RunE: func(cmd *cobra.Command, args []string) error {
			sources, err := flightLogSources(dbPath)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			if session == "" {
				for _, src := range sources {
					err := withFlightLogDB(src, func(db *gorm.DB) error {
						sessions, err := gormstorage.ListSessions(db)
						for _, s := range sessions {
							fmt.Fprintf(out, "%s\t%s\t%s", s.ID, s.StartTime.Format("2006-01-02 15:04:05"), s.BridgeType)
							if len(sources) > 1 {
								fmt.Fprintf(out, "\t%s", filepath.Base(src))
							}
							fmt.Fprintln(out)
						}
						return err
					})
					if err != nil {
						return err
					}
				}
				return nil
			}

			for _, src := range sources {
				var log memory.FlightLogExport
				err := withFlightLogDB(src, func(db *gorm.DB) (err error) {
					log, err = gormstorage.LoadFlightLog(db, session)
					return err
				})
				if errors.Is(err, gormstorage.ErrSessionNotFound) {
					continue
				}
				if err != nil {
					return err
				}
				path, err := writeFlightLogExport(outDir, log, compress)
				if err != nil {
					return err
				}
				fmt.Fprintln(out, path)
				return nil
			}
			return fmt.Errorf("%w: %s", gormstorage.ErrSessionNotFound, session)
		},
	}
	cmd.Flags().StringVar(&dbPath, "db", "", "SQLite dump, or a directory of dumps")
	cmd.Flags().StringVar(&session, "session", "", "session id to export")
	cmd.Flags().StringVarP(&outDir, "out", "o", ".", "output directory")
	cmd.Flags().BoolVar(&compress, "compress", false, "zstd-compress the export")
	return cmd
}

// flightLogSources expands path into the databases to read. An empty path
// stands for Postgres.
func flightLogSources(path string) ([]string, error) {
	if path == "" {
		return []string{""}, nil
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("flight log database: %w", err)
	}
	if !info.IsDir() {
		return []string{path}, nil
	}
	dumps, err := database.ListDumps(path)
	if err != nil {
		return nil, err
	}
	if len(dumps) == 0 {
		return nil, fmt.Errorf("no %s files in %s", database.DumpExt, path)
	}
	return dumps, nil
}

// withFlightLogDB opens src (Postgres when empty), runs fn and closes it.
func withFlightLogDB(src string, fn func(*gorm.DB) error) error {
	var (
		db  *gorm.DB
		err error
	)
	if src == "" {
		db, err = database.OpenPostgres(config.GetStorageConfig().Postgres)
		if err != nil {
			return fmt.Errorf("failed to connect to postgres: %w", err)
		}
	} else if db, err = database.OpenSqlite(src); err != nil {
		return err
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}
	return fn(db)
}

func writeFlightLogExport(dir string, log memory.FlightLogExport, compress bool) (string, error) {
	name := "flight_" + log.StartTime.Format("20060102_150405") + "_" + strings.ReplaceAll(log.SessionID, "-", "") + ".json"
	if compress {
		name += ".zst"
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, name)
	return path, memory.WriteExport(path, log, compress)
}
