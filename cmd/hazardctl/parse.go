package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/couchcryptid/hazard-ingest-service/internal/adapter/feed"
	"github.com/couchcryptid/hazard-ingest-service/internal/domain"
)

var parseSource string

var parseCmd = &cobra.Command{
	Use:   "parse --source <id> <file|->",
	Short: "Parse and normalize a captured upstream payload offline",
	Long: `Parse a payload previously fetched from a source, for example one kept in
the raw archive, and print the normalized records and drop reasons as JSON.
Nothing is written to the store.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		body, err := readInput(cmd.InOrStdin(), args[0])
		if err != nil {
			return err
		}
		out, err := parsePayload(domain.SourceID(parseSource), body, logger)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), out)
	},
}

func init() {
	parseCmd.Flags().StringVar(&parseSource, "source", "", "source the payload came from")
	_ = parseCmd.MarkFlagRequired("source")
}

type droppedRecord struct {
	Line   int    `json:"line"`
	Reason string `json:"reason"`
}

type parseOutput struct {
	Source    domain.SourceID `json:"source"`
	Parsed    int             `json:"parsed"`
	Malformed int             `json:"malformed"`
	Excluded  int             `json:"excluded"`
	Dropped   []droppedRecord `json:"dropped"`
	Records   []domain.Record `json:"records"`
}

func parsePayload(id domain.SourceID, body []byte, logger *slog.Logger) (parseOutput, error) {
	a, err := feed.New(id, feed.Options{}, logger)
	if err != nil {
		return parseOutput{}, err
	}
	res, err := a.Parse(body)
	if err != nil {
		return parseOutput{}, err
	}

	out := parseOutput{
		Source:    id,
		Parsed:    len(res.Records),
		Malformed: res.Malformed,
		Dropped:   []droppedRecord{},
		Records:   []domain.Record{},
	}
	for _, raw := range res.Records {
		rec, err := domain.Normalize(raw)
		switch {
		case errors.Is(err, domain.ErrNotCandidate):
			out.Excluded++
		case err != nil:
			out.Dropped = append(out.Dropped, droppedRecord{Line: raw.Line, Reason: err.Error()})
		default:
			out.Records = append(out.Records, rec)
		}
	}
	return out, nil
}

func readInput(stdin io.Reader, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(stdin)
	}
	body, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read payload: %w", err)
	}
	return body, nil
}
