package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/studentdocs/profile-service/internal/server"
	"github.com/studentdocs/profile-service/internal/webhook"
)

type replayResult struct {
	Decision   string `json:"decision"`
	Reason     string `json:"reason,omitempty"`
	RecordID   int64  `json:"record_id,omitempty"`
	TableID    string `json:"table_id,omitempty"`
	Status     string `json:"status,omitempty"`
	Stage      string `json:"stage,omitempty"`
	FolderName string `json:"folder_name,omitempty"`
	FolderLink string `json:"folder_link,omitempty"`
	Profile    string `json:"profile_link,omitempty"`
	Error      string `json:"error,omitempty"`
}

func replayCmd() *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "replay [payload.json|-]",
		Short: "Feed a saved webhook payload through the provisioning pipeline",
		Long: `Classify a saved Baserow webhook payload and, when it is accepted,
run folder provisioning and the record update exactly as the webhook would.
Use --dry-run to only print the classification.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := readPayload(cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}

			d := webhook.Classify(body)
			res := replayResult{Decision: d.Kind.String(), Reason: d.Reason, RecordID: d.RecordID, TableID: d.TableID}
			if d.Kind != webhook.Accepted || dryRun {
				return printJSON(cmd.OutOrStdout(), res)
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			components := server.Build(cmd.Context(), cfg, server.Options{})
			defer func() { _ = components.Close() }()

			out := components.Orchestrator.Run(cmd.Context(), d.Record, d.RecordID, d.TableID)
			res.Status = out.Status
			res.Stage = string(out.Stage)
			res.FolderName = out.FolderName
			res.FolderLink = out.FolderLink
			res.Profile = out.ProfileLink
			if out.Err != nil {
				res.Error = out.Err.Error()
			}
			if err := printJSON(cmd.OutOrStdout(), res); err != nil {
				return err
			}
			if out.Err != nil {
				return errors.New("provisioning failed")
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "classify only, make no external calls")

	return cmd
}

func readPayload(stdin io.Reader, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(stdin)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read payload: %w", err)
	}
	return b, nil
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
