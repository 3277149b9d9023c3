package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"

	"github.com/tendant/simple-image/pkg/simpleimage"
	"github.com/tendant/simple-image/pkg/simpleimage/convert/remote"
)

// NewUploadCommand creates the upload command
func NewUploadCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "upload <file> [file...]",
		Short: "Upload images to the repository",
		Long: `Upload one or more images. A single file prints its id; several files
are uploaded as one batch and print one id per line in argument order.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClientFromFlags(cmd)
			if err != nil {
				return fmt.Errorf("failed to create client: %w", err)
			}

			files := make([]simpleimage.UploadRequest, 0, len(args))
			for _, path := range args {
				data, err := os.ReadFile(path)
				if err != nil {
					return fmt.Errorf("read %s: %w", path, err)
				}
				files = append(files, simpleimage.UploadRequest{FileName: filepath.Base(path), Data: data})
			}

			if verbose(cmd) {
				fmt.Fprintf(cmd.ErrOrStderr(), "Uploading %d file(s)\n", len(files))
			}

			if len(files) == 1 {
				id, err := c.Upload(cmd.Context(), files[0].FileName, files[0].Data)
				if err != nil {
					return fmt.Errorf("upload failed: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), id)
				return nil
			}

			ids, err := c.BulkUpload(cmd.Context(), files)
			if err != nil {
				return fmt.Errorf("upload failed: %w", err)
			}
			for _, id := range ids {
				fmt.Fprintln(cmd.OutOrStdout(), id)
			}
			return nil
		},
	}
	return cmd
}

// NewURLCommand creates the url command
func NewURLCommand() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "url <image-id>",
		Short: "Resolve the URL of an image",
		Long:  `Resolve the URL of the original image, or of --format, converting on first request.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClientFromFlags(cmd)
			if err != nil {
				return fmt.Errorf("failed to create client: %w", err)
			}
			url, err := c.URL(cmd.Context(), args[0], format)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), url)
			return nil
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "", "target format (default: original)")
	return cmd
}

// NewURLsCommand creates the urls command
func NewURLsCommand() *cobra.Command {
	var format string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "urls <image-id> [image-id...]",
		Short: "Resolve URLs of several images at once",
		Long:  `Resolve URLs for every id in one request. The request fails as a whole if any id is unknown.`,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClientFromFlags(cmd)
			if err != nil {
				return fmt.Errorf("failed to create client: %w", err)
			}
			urls, err := c.BulkURLs(cmd.Context(), args, format)
			if err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(urls)
			}

			ids := make([]string, 0, len(urls))
			for id := range urls {
				ids = append(ids, id)
			}
			sort.Strings(ids)
			for _, id := range ids {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", id, urls[id])
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "", "target format (default: original)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "output as JSON")
	return cmd
}

// NewFetchCommand creates the fetch command
func NewFetchCommand() *cobra.Command {
	var format string
	var outputPath string

	cmd := &cobra.Command{
		Use:   "fetch <image-id>",
		Short: "Download an image",
		Long:  `Download the original image, or its --format representation, following the redirect.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClientFromFlags(cmd)
			if err != nil {
				return fmt.Errorf("failed to create client: %w", err)
			}

			id := args[0]
			data, err := c.Fetch(cmd.Context(), id, format)
			if err != nil {
				return fmt.Errorf("fetch failed: %w", err)
			}

			if outputPath == "" {
				outputPath = id
				if format != "" {
					outputPath += "." + simpleimage.NormalizeFormat(format)
				}
			}
			if err := os.WriteFile(outputPath, data, 0644); err != nil {
				return fmt.Errorf("write %s: %w", outputPath, err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Saved %d bytes to %s\n", len(data), outputPath)
			return nil
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "", "target format (default: original)")
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "output file path (default: <id>[.<format>])")
	return cmd
}

// NewConvertCommand creates the convert command
func NewConvertCommand() *cobra.Command {
	var format string
	var outputPath string
	var conversionURL string
	var gzip bool

	cmd := &cobra.Command{
		Use:   "convert <file>",
		Short: "Convert a local image through the conversion service",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if format == "" {
				return fmt.Errorf("--format is required")
			}
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read %s: %w", args[0], err)
			}

			converter, err := remote.New(conversionURL, remote.WithTimeout(timeoutOf(cmd)), remote.WithGzip(gzip))
			if err != nil {
				return err
			}
			out, err := converter.Convert(cmd.Context(), data, format)
			if err != nil {
				return err
			}

			if outputPath == "" {
				base := filepath.Base(args[0])
				outputPath = base[:len(base)-len(filepath.Ext(base))] + "." + simpleimage.NormalizeFormat(format)
			}
			if err := os.WriteFile(outputPath, out, 0644); err != nil {
				return fmt.Errorf("write %s: %w", outputPath, err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Saved %d bytes to %s\n", len(out), outputPath)
			return nil
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "", "target format")
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "output file path (default: <name>.<format>)")
	cmd.Flags().StringVar(&conversionURL, "conversion-url", getEnv("CONVERSION_URL", "http://localhost:8081"), "conversion service base URL")
	cmd.Flags().BoolVar(&gzip, "gzip", false, "gzip the request payload")
	return cmd
}
