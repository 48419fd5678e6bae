package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	flowdomain "github.com/railzwaylabs/plexsource/internal/flow/domain"
	flowservice "github.com/railzwaylabs/plexsource/internal/flow/service"
	"github.com/railzwaylabs/plexsource/internal/seed"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

func newFlowsCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "flows",
		Short: "Inspect flows available to Plex sources",
	}
	cmd.AddCommand(newFlowsListCmd(opts))
	return cmd
}

func newFlowsListCmd(opts *rootOptions) *cobra.Command {
	var designation string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List flows of a designation",
		RunE: func(cmd *cobra.Command, args []string) error {
			d := flowdomain.Designation(designation)
			if !d.Valid() {
				return fmt.Errorf("%w: %s", flowdomain.ErrInvalidDesignation, designation)
			}

			var loader *flowservice.Loader
			return runWith(cmd, opts, func(ctx context.Context) error {
				flows, err := loader.List(ctx, d)
				if err != nil {
					return err
				}
				w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "PK\tSLUG\tNAME\tDEFAULT")
				for _, f := range flows {
					def := ""
					if f.Slug == flowdomain.DefaultSlug(d) {
						def = "yes"
					}
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", f.PK, f.Slug, f.Name, def)
				}
				return w.Flush()
			}, fx.Populate(&loader))
		},
	}
	cmd.Flags().StringVarP(&designation, "designation", "d", string(flowdomain.DesignationAuthentication), "authentication or enrollment")
	return cmd
}

func newSeedCmd(opts *rootOptions) *cobra.Command {
	var raw []string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create or rename flows in the local database",
		Example: `  plexsource seed --flow "authentication:Plex Login" --flow "enrollment:Plex Signup:plex-signup"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(raw) == 0 {
				return errors.New("at least one --flow is required")
			}
			specs := make([]seed.FlowSpec, 0, len(raw))
			for _, r := range raw {
				spec, err := seed.ParseFlowSpec(r)
				if err != nil {
					return err
				}
				specs = append(specs, spec)
			}

			cfg, err := opts.load()
			if err != nil {
				return err
			}
			if !cfg.IsLocal() {
				return errors.New("seed requires the local backend")
			}

			var conn *gorm.DB
			var loader *flowservice.Loader
			return runWith(cmd, opts, func(ctx context.Context) error {
				flows, err := seed.Flows(ctx, conn, specs)
				if err != nil {
					return err
				}
				loader.Invalidate(ctx)
				for _, f := range flows {
					fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", f.Designation, f.Slug, f.PK)
				}
				return nil
			}, fx.Populate(&conn, &loader))
		},
	}
	cmd.Flags().StringArrayVar(&raw, "flow", nil, "designation:name[:slug], repeatable")
	return cmd
}
