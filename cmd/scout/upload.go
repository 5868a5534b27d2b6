package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-go-golems/scout/pkg/config"
	"github.com/iancoleman/strcase"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

// uploadID derives a stable id from a file name, e.g. "My Notes.txt" -> "my-notes".
func uploadID(path string) string {
	base := filepath.Base(path)
	return strcase.ToKebab(strings.TrimSuffix(base, filepath.Ext(base)))
}

func newUploadCommand() *cobra.Command {
	var id string
	cmd := &cobra.Command{
		Use:   "upload <file>...",
		Short: "Index plain text files for private search",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if id != "" && len(args) > 1 {
				return errors.New("--id can only be used with a single file")
			}
			s, err := loadSettings()
			if err != nil {
				return err
			}
			rt, err := config.Build(s)
			if err != nil {
				return err
			}
			defer func() { _ = rt.Close() }()
			if rt.Indexer == nil {
				return errors.New("uploads need an embeddings provider, set embeddings.provider")
			}

			for _, path := range args {
				text, err := os.ReadFile(path)
				if err != nil {
					return errors.Wrapf(err, "read %s", path)
				}
				fileID := id
				if fileID == "" {
					fileID = uploadID(path)
				}
				f, err := rt.Indexer.Index(cmd.Context(), fileID, filepath.Base(path), string(text))
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%d chunks\t%s\n", f.ID, len(f.Contents), f.Title)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "id of the upload (default: derived from the file name)")
	return cmd
}
