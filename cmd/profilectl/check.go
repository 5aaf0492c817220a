package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/studentdocs/profile-service/internal/server"
)

func checkConfigCmd() *cobra.Command {
	var probe bool

	cmd := &cobra.Command{
		Use:   "check-config",
		Short: "Validate configuration and optionally build the storage client",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			fmt.Fprintln(out, "Profile service configuration")
			fmt.Fprintln(out, strings.Repeat("=", 40))
			fmt.Fprintf(out, "  Baserow:   %s (table %s, token %s)\n", valueOrDefault(cfg.Baserow.APIURL, "not set"), valueOrDefault(cfg.Baserow.TableID, "not set"), secretStatus(cfg.Baserow.Token))
			fmt.Fprintf(out, "  Storage:   %s (parent %s)\n", cfg.Storage.Backend, valueOrDefault(cfg.Storage.ParentFolderID, "bucket root"))
			fmt.Fprintf(out, "  Template:  %s\n", cfg.Render.TemplateFile)
			fmt.Fprintf(out, "  Profiles:  %s/student-details/{id}\n", cfg.Profile.BaseURL)
			fmt.Fprintf(out, "  Fields:    name=%q folder=%q profile=%q\n", cfg.Fields.DisplayName, cfg.Fields.FolderLink, cfg.Fields.ProfileLink)

			verr := cfg.Validate()
			if verr != nil {
				fmt.Fprintln(out, "\nProblems:")
				for _, line := range strings.Split(verr.Error(), "\n") {
					fmt.Fprintf(out, "  - %s\n", line)
				}
			}

			if probe {
				p, closer, err := server.NewProvisioner(cmd.Context(), cfg.Storage)
				if closer != nil {
					defer closer.Close()
				}
				if err != nil {
					fmt.Fprintf(out, "\nStorage:   FAILED (%s)\n", err)
					verr = errors.Join(verr, err)
				} else {
					fmt.Fprintf(out, "\nStorage:   OK (%T)\n", p)
				}
			}

			if verr != nil {
				return errors.New("configuration is incomplete")
			}
			fmt.Fprintln(out, "\nOK")
			return nil
		},
	}

	cmd.Flags().BoolVar(&probe, "probe", false, "also build the storage backend client")

	return cmd
}

func valueOrDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func secretStatus(v string) string {
	if v == "" {
		return "not set"
	}
	return "set"
}
