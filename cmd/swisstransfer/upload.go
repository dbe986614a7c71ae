package main

import (
	"errors"
	"fmt"
	"time"

	"swisstransfer/pkg/access"
	"swisstransfer/pkg/log"
	"swisstransfer/pkg/models"
	"swisstransfer/pkg/transfer"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var uploadCmd = &cobra.Command{
	Use:   "upload FILE...",
	Short: "Upload files as one container and print the share link",
	Long: `Upload registers every FILE in one container, sends them in chunks and
prints the share link once the container is finalized.

A file that fails does not stop the others; the command exits with an error
when any file could not be uploaded.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runUpload,
}

func init() {
	rootCmd.AddCommand(uploadCmd)

	flags := uploadCmd.Flags()
	flags.String("password", "", "protect the download with a password (at least 6 characters)")
	flags.String("message", "", "message shown to recipients")
	flags.String("email", "", "author e-mail address")
	flags.StringSlice("recipients", nil, "recipient e-mail addresses")
	flags.Int("duration", 0, "days before expiry: 1, 7, 15 or 30")
	flags.Int("downloads", 0, "download limit: 1, 20, 100, 200 or 250")
	flags.String("lang", "", "language: fr_FR, en_GB, it_IT, es_ES or de_DE")
	flags.Int64("chunk-size", 0, "chunk size in bytes")

	bindFlags(flags, map[string]string{
		"password":   "upload.password",
		"message":    "upload.message",
		"email":      "upload.author_email",
		"recipients": "upload.recipients",
		"duration":   "upload.duration",
		"downloads":  "upload.number_of_download",
		"lang":       "upload.lang",
		"chunk-size": "chunk_size",
	})
}

func runUpload(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	uploader, err := transfer.NewUploader(newClient(), transfer.UploaderConfig{
		Settings:      cfg.Upload.Settings(),
		ChunkSize:     cfg.ChunkSize,
		MaxUploadSize: cfg.MaxUploadSize,
		RateLimit:     cfg.BandwidthLimit,
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if err := uploader.AddFiles(args...); err != nil {
		return err
	}
	for _, registration := range uploader.Wait() {
		if registration.OK() {
			fmt.Fprintf(out, "  + %s (%s)\n", registration.Item.Name, humanize.IBytes(uint64(registration.Item.Size)))
		} else {
			fmt.Fprintf(out, "  ! %v\n", registration.Err)
		}
	}

	bar := newProgressBar(cmd.ErrOrStderr(), "upload", uploader.TotalSize())
	unsubscribe := uploader.Events.Progress.Subscribe(bar.update)
	defer unsubscribe()
	uploader.Events.StateChanged.Subscribe(func(change transfer.StateChanged) {
		if change.To == transfer.StateChunksUploading {
			bar.start()
		}
	})

	started := time.Now()
	report, err := uploader.Upload(ctx)
	bar.finish()
	if report != nil {
		for _, result := range report.Files.Failed() {
			fmt.Fprintf(out, "  failed: %v\n", result.Err)
		}
	}
	if err != nil {
		return err
	}

	log.Info().
		Str("container", report.ContainerUUID).
		Str("elapsed", time.Since(started).Round(time.Millisecond).String()).
		Msg("Upload finished")

	uploaded := report.Files.Succeeded()
	fmt.Fprintf(out, "Uploaded %d file(s), %s\n", len(uploaded), humanize.IBytes(uint64(uploadedSize(uploaded))))
	for _, link := range report.Links {
		expires := link.ExpiredDate
		if expiry, err := access.ParseTimestamp(link.ExpiredDate); err == nil && !expiry.IsZero() {
			expires = humanize.Time(expiry)
		}
		fmt.Fprintf(out, "%s (expires %s, %d downloads)\n", link.URL(cfg.Host), expires, link.DownloadCounterCredit)
	}

	if !report.Files.AllOK() {
		return errors.New("some files were not uploaded")
	}
	return nil
}

// uploadedSize sums the sizes of files that made it into the container.
func uploadedSize(files []models.LocalFile) int64 {
	var total int64
	for _, file := range files {
		total += file.Size
	}
	return total
}
