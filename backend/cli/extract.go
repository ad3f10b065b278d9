package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/PhilHem/log-sentinel/backend/config"
	"github.com/PhilHem/log-sentinel/backend/extractor"
	"github.com/PhilHem/log-sentinel/backend/parser"

	"github.com/spf13/cobra"
)

var extractMatchedOnly bool

var extractCmd = &cobra.Command{
	Use:   "extract <file>",
	Short: "Print the metadata extracted from each line of a log file",
	Long: `Stream a log file (plain, gzip or zstd) through the extractor and
print one JSON object per line, without touching the database.

Examples:
  log-sentinel extract /var/log/app.log
  log-sentinel extract app.log.gz --matched`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.Load(cfgFile); err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		n, err := extractFile(cmd.Context(), args[0], cmd.OutOrStdout(), extractMatchedOnly, parser.Options{
			MaxLineSize: config.C.Parser.MaxLineSize,
			BatchSize:   config.C.Parser.BatchSize,
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "%d lines read\n", n)
		return nil
	},
}

func init() {
	extractCmd.Flags().BoolVar(&extractMatchedOnly, "matched", false, "skip lines with no extracted metadata")
	rootCmd.AddCommand(extractCmd)
}

type extractedLine struct {
	Line int `json:"line"`
	extractor.Fields
	Raw string `json:"raw"`
}

func extractFile(ctx context.Context, path string, out io.Writer, matchedOnly bool, opts parser.Options) (int, error) {
	rc, err := parser.Open(path)
	if err != nil {
		return 0, err
	}
	defer rc.Close()

	enc := json.NewEncoder(out)
	return parser.Parse(ctx, rc, parser.SinkFunc(func(_ context.Context, batch []parser.Record) error {
		for _, rec := range batch {
			if matchedOnly && rec.Fields.Empty() {
				continue
			}
			if err := enc.Encode(extractedLine{Line: rec.Line, Fields: rec.Fields, Raw: rec.Raw}); err != nil {
				return err
			}
		}
		return nil
	}), opts)
}
