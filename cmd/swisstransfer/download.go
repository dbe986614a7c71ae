package main

import (
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"

	"swisstransfer/pkg/transfer"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var downloadFlags struct {
	Password string
	Dest     string
}

var downloadCmd = &cobra.Command{
	Use:   "download LINK",
	Short: "Download every file behind a share link",
	Long: `Download checks the password, the remaining downloads and the expiry of
LINK, then writes every file of the container into --dest.

LINK is either a link UUID or a share URL ending in /d/<uuid>.`,
	Args: cobra.ExactArgs(1),
	RunE: runDownload,
}

func init() {
	rootCmd.AddCommand(downloadCmd)

	downloadCmd.Flags().StringVarP(&downloadFlags.Password, "password", "p", "", "link password")
	downloadCmd.Flags().StringVarP(&downloadFlags.Dest, "dest", "d", ".", "destination directory")
}

// linkUUID accepts a bare UUID or a share URL.
func linkUUID(arg string) string {
	if !strings.Contains(arg, "/") {
		return arg
	}
	if parsed, err := url.Parse(arg); err == nil && parsed.Path != "" {
		return path.Base(strings.TrimRight(parsed.Path, "/"))
	}
	return path.Base(strings.TrimRight(arg, "/"))
}

func runDownload(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	downloader := transfer.NewDownloader(newClient(), transfer.DownloaderConfig{
		LinkUUID: linkUUID(args[0]),
		Password: downloadFlags.Password,
	})

	bar := newProgressBar(cmd.ErrOrStderr(), "download", 0)
	bar.start()
	unsubscribe := downloader.Events.Progress.Subscribe(bar.update)
	defer unsubscribe()

	results, err := downloader.Download(ctx, downloadFlags.Dest)
	bar.finish()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, result := range results {
		if result.OK() {
			fmt.Fprintf(out, "  + %s (%s)\n", result.Item.FileName, humanize.IBytes(uint64(result.Item.FileSizeInBytes)))
		} else {
			fmt.Fprintf(out, "  ! %v\n", result.Err)
		}
	}

	if !results.AllOK() {
		return errors.New("some files were not downloaded")
	}
	return nil
}
