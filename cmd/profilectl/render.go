package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/studentdocs/profile-service/internal/records"
	"github.com/studentdocs/profile-service/internal/render"
)

func renderCmd() *cobra.Command {
	var output string
	var htmlOnly bool

	cmd := &cobra.Command{
		Use:   "render [record-id]",
		Short: "Fetch a record and render its profile PDF to a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil || id <= 0 {
				return fmt.Errorf("invalid record id %q", args[0])
			}
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			rec, err := records.NewClient(cfg.Baserow.APIURL, cfg.Baserow.Token, nil).
				Fetch(cmd.Context(), cfg.Baserow.TableID, id)
			if err != nil {
				return err
			}
			r := render.New(render.Options{TemplateFile: cfg.Render.TemplateFile, DisplayField: cfg.Fields.DisplayName})

			if htmlOnly {
				page, err := r.HTML(rec)
				if err != nil {
					return err
				}
				_, err = cmd.OutOrStdout().Write(page)
				return err
			}

			doc, err := r.Render(cmd.Context(), id, rec)
			if err != nil {
				return err
			}
			if output == "" {
				output = doc.Filename
			}
			if err := os.WriteFile(output, doc.Content, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", output, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d bytes)\n", output, len(doc.Content))
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default {name}_{id}.pdf)")
	cmd.Flags().BoolVar(&htmlOnly, "html", false, "print the bound HTML instead of compiling a PDF")

	return cmd
}
