package cmd

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/kris-hansen/analyst/utils/fileutil"
	"github.com/kris-hansen/analyst/utils/input"
	"github.com/kris-hansen/analyst/utils/profile"
)

var profileCmd = &cobra.Command{
	Use:   "profile <files...>",
	Short: "Print the data profile the Analyst sees for local files",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return profileFiles(cmd.OutOrStdout(), input.NewHandler(fileutil.MaxFileSize), args)
	},
}

func profileFiles(w io.Writer, handler *input.Handler, paths []string) error {
	uploads, err := readUploads(paths, handler.MaxSize())
	if err != nil {
		return err
	}

	var sources []profile.Source
	for _, up := range uploads {
		f, err := handler.ProcessUpload(up)
		if err != nil {
			fmt.Fprintf(w, "Skipping %s: %v\n", filepath.Base(up.Name), err)
			continue
		}
		sources = append(sources, f.ProfileSource())
	}
	if len(sources) == 0 {
		return fmt.Errorf("no files could be processed")
	}

	fmt.Fprintln(w, profile.FileInfo(sources))
	fmt.Fprintln(w, profile.Summary(sources))
	return nil
}

// readUploads loads local files as uploads
func readUploads(paths []string, limit int64) ([]input.Upload, error) {
	uploads := make([]input.Upload, 0, len(paths))
	for _, path := range paths {
		data, err := fileutil.SafeReadFile(path, limit)
		if err != nil {
			return nil, fmt.Errorf("error reading %s: %w", path, err)
		}
		uploads = append(uploads, input.Upload{Name: filepath.Base(path), Data: data})
	}
	return uploads, nil
}

func init() {
	rootCmd.AddCommand(profileCmd)
}
