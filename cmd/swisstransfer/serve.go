package main

import (
	"swisstransfer/pkg/emulator"

	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run a local emulator of the service API",
	Long: `Serve starts an HTTP server implementing the container, chunk, finalize,
password, token and download endpoints on top of a SQLite database.

Point the client at it with --host http://localhost:8080 and
SWISSTRANSFER_UPLOAD_SCHEME=http.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		srv, err := emulator.New(emulator.Options{
			StorageDir: cfg.Emulator.StorageDir,
			DBPath:     cfg.Emulator.DBPath,
			UploadHost: cfg.Emulator.UploadHost,
		})
		if err != nil {
			return err
		}
		return srv.Start(cfg.Emulator.Addr)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	flags := serveCmd.Flags()
	flags.String("addr", "", "listen address")
	flags.String("storage", "", "directory for received chunks")
	flags.String("db", "", "SQLite database path")
	flags.String("upload-host", "", "upload host returned on registration (defaults to the request host)")

	bindFlags(flags, map[string]string{
		"addr":        "emulator.addr",
		"storage":     "emulator.storage_dir",
		"db":          "emulator.db_path",
		"upload-host": "emulator.upload_host",
	})
}
