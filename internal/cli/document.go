package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/evcraddock/propdesk/internal/apiclient"
	"github.com/evcraddock/propdesk/internal/document"
	"github.com/evcraddock/propdesk/internal/report"
	"github.com/evcraddock/propdesk/internal/validate"
)

// uploadTypes are the file types the server accepts, by extension.
var uploadTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".webp": "image/webp",
	".heic": "image/heic",
	".pdf":  "application/pdf",
}

func newDocumentCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "document",
		Aliases: []string{"documents", "doc"},
		Short:   "Upload, list and download unit documents",
	}
	cmd.AddCommand(
		newDocumentListCmd(),
		&cobra.Command{
			Use:   "show <id>",
			Short: "Show document details",
			Args:  cobra.ExactArgs(1),
			RunE:  runDocumentShow,
		},
		newDocumentUploadCmd(),
		newDownloadCmd("download <id>", "Download a document", func(cmd *cobra.Command, c *apiclient.Client, id string) (string, string, error) {
			d, err := c.GetDocument(cmd.Context(), id)
			if err != nil {
				return "", "", err
			}
			return report.URL(d.FileKey), filepath.Base(d.FileKey), nil
		}),
		&cobra.Command{
			Use:   "delete <id>",
			Short: "Delete a document and its file",
			Args:  cobra.ExactArgs(1),
			RunE:  runDocumentDelete,
		},
	)
	return cmd
}

func newDocumentListCmd() *cobra.Command {
	var (
		unitID, category string
		paging           pageFlags
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List documents",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newAPIClient(cmd)
			if err != nil {
				return err
			}
			page, err := c.ListDocuments(cmd.Context(), paging.options(map[string]string{
				"unitId":   unitID,
				"category": strings.ToUpper(category),
			}))
			if err != nil {
				return err
			}
			return emit(cmd, page, func(w io.Writer) error { return printDocumentTable(w, page) })
		},
	}
	cmd.Flags().StringVar(&unitID, "unit", "", "only documents of this unit")
	cmd.Flags().StringVar(&category, "category", "", "CONTRACT, BILL or OTHER")
	paging.register(cmd)
	return cmd
}

func runDocumentShow(cmd *cobra.Command, args []string) error {
	c, err := newAPIClient(cmd)
	if err != nil {
		return err
	}
	d, err := c.GetDocument(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	return emit(cmd, d, func(w io.Writer) error {
		fmt.Fprintf(w, "Document %s\n", d.ID)
		fmt.Fprintf(w, "  Title:    %s\n", d.Title)
		fmt.Fprintf(w, "  Unit:     %s\n", d.UnitID)
		fmt.Fprintf(w, "  Category: %s\n", d.Category.Label())
		fmt.Fprintf(w, "  Type:     %s\n", dash(d.MimeType))
		fmt.Fprintf(w, "  Size:     %s\n", formatSize(d.SizeBytes))
		fmt.Fprintf(w, "  File:     %s\n", report.URL(d.FileKey))
		return nil
	})
}

func newDocumentUploadCmd() *cobra.Command {
	var (
		in       document.CreateInput
		category string
		provider string
	)
	cmd := &cobra.Command{
		Use:   "upload <file>",
		Short: "Upload a file and register it against a unit",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			contentType, err := contentTypeFor(path)
			if err != nil {
				return err
			}
			in.Category = document.Category(strings.ToUpper(category))
			if in.Title == "" {
				in.Title = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
			}
			// The file key is only known after the upload.
			in.FileKey = "pending"
			if err := validate.Struct(in); err != nil {
				return err
			}

			f, err := os.Open(path)
			if err != nil {
				return fmt.Errorf("opening %s: %w", path, err)
			}
			defer func() { _ = f.Close() }()

			c, err := newAPIClient(cmd)
			if err != nil {
				return err
			}
			up, err := c.UploadFile(cmd.Context(), provider, filepath.Base(path), contentType, f)
			if err != nil {
				return err
			}
			in.FileKey = up.FileKey
			in.MimeType = up.MimeType
			in.SizeBytes = up.Size

			d, err := c.CreateDocument(cmd.Context(), in)
			if err != nil {
				return err
			}
			return done(cmd, d, "Document %s uploaded (%s).", d.ID, formatSize(d.SizeBytes))
		},
	}
	cmd.Flags().StringVar(&in.UnitID, "unit", "", "unit ID")
	cmd.Flags().StringVar(&category, "category", string(document.Other), "CONTRACT, BILL or OTHER")
	cmd.Flags().StringVar(&in.Title, "title", "", "document title (default: file name)")
	cmd.Flags().StringVar(&provider, "provider", "local", "upload provider (local|r2|cloudinary)")
	_ = cmd.MarkFlagRequired("unit")
	return cmd
}

func runDocumentDelete(cmd *cobra.Command, args []string) error {
	c, err := newAPIClient(cmd)
	if err != nil {
		return err
	}
	if err := confirmDelete(cmd, "document "+args[0]); err != nil {
		return err
	}
	if err := c.DeleteDocument(cmd.Context(), args[0]); err != nil {
		return err
	}
	return done(cmd, map[string]string{"deleted": args[0]}, "Document %s deleted.", args[0])
}

// fileLocator resolves an entity to the URL of its stored file and a default
// local file name.
type fileLocator func(cmd *cobra.Command, c *apiclient.Client, id string) (url, name string, err error)

// newDownloadCmd builds a download command writing to --output, or to the
// default name in the current directory.
func newDownloadCmd(use, short string, locate fileLocator) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newAPIClient(cmd)
			if err != nil {
				return err
			}
			fileURL, name, err := locate(cmd, c, args[0])
			if err != nil {
				return err
			}
			if output == "" {
				output = name
			}

			var w io.Writer = cmd.OutOrStdout()
			if output != "-" {
				f, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("creating %s: %w", output, err)
				}
				defer func() { _ = f.Close() }()
				w = f
			}

			n, err := c.Download(cmd.Context(), fileURL, w)
			if err != nil {
				return err
			}
			if output != "-" {
				fmt.Fprintf(cmd.ErrOrStderr(), "✓ Saved %s (%s).\n", output, formatSize(n))
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file, - for stdout")
	return cmd
}

func contentTypeFor(path string) (string, error) {
	ct, ok := uploadTypes[strings.ToLower(filepath.Ext(path))]
	if !ok {
		return "", fmt.Errorf("unsupported file type %q (use jpeg, png, webp, heic or pdf)", filepath.Ext(path))
	}
	return ct, nil
}
