package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"webtoondl/downloader"
	"webtoondl/logging"
	"webtoondl/models"
	"webtoondl/packager"
	"webtoondl/parser"
	"webtoondl/validation"
)

var (
	flagFormat string
	flagOutput string
)

func init() {
	fetchCmd := &cobra.Command{
		Use:   "fetch <title> <episode>",
		Short: "Download one episode to a local file",
		Args:  cobra.ExactArgs(2),
		RunE:  runFetch,
	}
	fetchCmd.Flags().StringVarP(&flagFormat, "format", "F", "", "output format: "+strings.Join(packager.Formats(), ", "))
	fetchCmd.Flags().StringVarP(&flagOutput, "output", "o", ".", "folder for the downloaded file(s)")

	rootCmd.AddCommand(fetchCmd)
}

func runFetch(cmd *cobra.Command, args []string) error {
	episode, err := strconv.Atoi(strings.TrimSpace(args[1]))
	if err != nil {
		return fmt.Errorf("episode must be a number: %q", args[1])
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	req := models.Request{
		Title:   strings.TrimSpace(args[0]),
		Episode: episode,
		Format:  models.ParseFormat(flagFormat, models.ParseFormat(cfg.Output.Format, models.FormatPDF)),
	}
	if err := validation.ValidateRequest(req); err != nil {
		return err
	}
	if !packager.Supported(req.Format) {
		return fmt.Errorf("unsupported format %q (supported: %s)", req.Format, strings.Join(packager.Formats(), ", "))
	}

	outDir, err := parser.ExpandPath(flagOutput)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return fmt.Errorf("cannot create output folder: %w", err)
	}

	closeLog, err := logging.Setup(cfg.Logging)
	if err != nil {
		return err
	}
	defer closeLog()

	manager, err := newManager(cfg, true)
	if err != nil {
		return err
	}

	view := newProgressView(os.Stdout, fmt.Sprintf("%s #%d", req.Title, req.Episode))
	manager.Tracker().SetCallbacks(view.Update)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	// After the first Ctrl-C the run winds down and closes the browser;
	// restoring the default handler lets a second one kill the process.
	finished := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			stop()
			log.Printf("[Fetch] Interrupted, cleaning up (press Ctrl-C again to quit now)")
		case <-finished:
		}
	}()

	result, err := manager.Download(ctx, req)
	close(finished)
	view.Wait()
	if err != nil {
		return errors.New(downloader.PublicMessage(err))
	}

	if result.Artifact == nil {
		paths, err := writeImages(outDir, req, result.Images)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Saved %d image(s) to %s\n", len(paths), outDir)
		return nil
	}

	defer result.Cleanup()
	dest := filepath.Join(outDir, result.Artifact.Filename)
	if err := moveFile(result.Artifact.Path, dest); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Saved %s (%d pages)\n", dest, result.Artifact.Pages)
	return nil
}

// writeImages stores inline images as <Title>_Ep<n>_<page>.<ext>
func writeImages(dir string, req models.Request, images []string) ([]string, error) {
	base := packager.Meta{Title: req.Title, Episode: req.Episode}.BaseName()
	paths := make([]string, 0, len(images))
	for i, img := range images {
		data, ext, err := packager.DecodeDataURL(img)
		if err != nil {
			return paths, fmt.Errorf("image %d: %w", i+1, err)
		}
		path := filepath.Join(dir, fmt.Sprintf("%s_%03d.%s", base, i+1, ext))
		if err := os.WriteFile(path, data, 0644); err != nil {
			return paths, fmt.Errorf("failed to write %s: %w", path, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}

// moveFile renames src to dst, copying when they are on different devices
func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		log.Printf("[Fetch] ✓ Moved %s to %s", src, dst)
		return nil
	}

	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("failed to copy to %s: %w", dst, err)
	}
	if err := out.Close(); err != nil {
		return err
	}
	log.Printf("[Fetch] ✓ Copied %s to %s", src, dst)
	return nil
}
