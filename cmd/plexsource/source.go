package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"

	plexdomain "github.com/railzwaylabs/plexsource/internal/plex/domain"
	"github.com/railzwaylabs/plexsource/internal/plex/presenter"
	"github.com/railzwaylabs/plexsource/internal/session"
	sourcedomain "github.com/railzwaylabs/plexsource/internal/source/domain"
	sourceservice "github.com/railzwaylabs/plexsource/internal/source/service"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/fx"
)

func newSourceCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "source",
		Short: "Create, edit and inspect Plex sources",
	}
	cmd.AddCommand(
		newSourceGetCmd(opts),
		newSourceFormCmd(opts, "create", "Create a Plex source, authorizing with Plex in the browser"),
		newSourceFormCmd(opts, "edit <slug>", "Edit a Plex source, authorizing with Plex in the browser"),
	)
	return cmd
}

func newSourceGetCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "get <slug>",
		Short: "Show a stored Plex source",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var svc *sourceservice.Service
			return runWith(cmd, opts, func(ctx context.Context) error {
				src, err := svc.Get(ctx, args[0])
				if err != nil {
					return err
				}
				printSource(cmd.OutOrStdout(), *src)
				return nil
			}, fx.Populate(&svc))
		},
	}
}

type formFlags struct {
	name               string
	slug               string
	enabled            bool
	userMatchingMode   string
	allowFriends       bool
	authenticationFlow string
	enrollmentFlow     string
	servers            []string
}

func (f *formFlags) register(fs *pflag.FlagSet, withSlug bool) {
	fs.StringVar(&f.name, "name", "", "display name")
	if withSlug {
		fs.StringVar(&f.slug, "slug", "", "URL-safe identifier")
	}
	fs.BoolVar(&f.enabled, "enabled", true, "enable the source")
	fs.StringVar(&f.userMatchingMode, "user-matching-mode", "", "identifier, email_link, email_deny, username_link or username_deny")
	fs.BoolVar(&f.allowFriends, "allow-friends", true, "allow users the server owner shares with")
	fs.StringVar(&f.authenticationFlow, "authentication-flow", "", "authentication flow PK")
	fs.StringVar(&f.enrollmentFlow, "enrollment-flow", "", "enrollment flow PK")
	fs.StringSliceVar(&f.servers, "server", nil, "allowed server client identifier, repeatable; defaults to the current selection")
}

// edit turns the flags the user actually set into a form edit.
func (f *formFlags) edit(fs *pflag.FlagSet) session.Edit {
	var e session.Edit
	if fs.Changed("name") {
		e.Name = &f.name
	}
	if fs.Changed("slug") {
		e.Slug = &f.slug
	}
	if fs.Changed("enabled") {
		e.Enabled = &f.enabled
	}
	if fs.Changed("user-matching-mode") {
		mode := sourcedomain.UserMatchingMode(f.userMatchingMode)
		e.UserMatchingMode = &mode
	}
	if fs.Changed("allow-friends") {
		e.AllowFriends = &f.allowFriends
	}
	if fs.Changed("authentication-flow") {
		e.AuthenticationFlow = &f.authenticationFlow
	}
	if fs.Changed("enrollment-flow") {
		e.EnrollmentFlow = &f.enrollmentFlow
	}
	return e
}

func newSourceFormCmd(opts *rootOptions, use, short string) *cobra.Command {
	flags := &formFlags{}
	editing := use != "create"
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			slug := ""
			if editing {
				slug = args[0]
			}

			var manager *session.Manager
			return runWith(cmd, opts, func(ctx context.Context) error {
				s, err := manager.Open(ctx, slug, presenter.NewBrowser())
				if err != nil {
					return err
				}
				defer func() {
					_ = manager.Discard(s.ID())
				}()

				if _, err := s.Edit(flags.edit(cmd.Flags())); err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				auth, err := s.Authorize(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Approve access in your browser. If it did not open, visit:\n  %s\n", auth.AuthorizationURL)

				if err := s.Wait(ctx); err != nil {
					return err
				}
				view := s.View()
				if view.Authorization == nil || view.Authorization.State != plexdomain.StateCompleted {
					msg := "authorization did not complete"
					if view.Authorization != nil && view.Authorization.Error != "" {
						msg = view.Authorization.Error
					}
					return errors.New(msg)
				}
				printResources(out, view)

				var selection []string
				if cmd.Flags().Changed("server") {
					selection = append([]string{}, flags.servers...)
				}
				res, err := s.Submit(ctx, selection)
				if err != nil {
					var verr *sourcedomain.ValidationError
					if errors.As(err, &verr) {
						printValidation(cmd.ErrOrStderr(), verr)
					}
					return err
				}
				fmt.Fprintln(out, res.Message)
				if res.Source != nil {
					printSource(out, *res.Source)
				}
				return nil
			}, session.Module, fx.Populate(&manager))
		},
	}
	if editing {
		cmd.Args = cobra.ExactArgs(1)
	} else {
		cmd.Args = cobra.NoArgs
	}
	flags.register(cmd.Flags(), !editing)
	return cmd
}

func printResources(w io.Writer, view session.View) {
	if view.DiscoveryError != "" {
		fmt.Fprintf(w, "Could not list Plex servers: %s\n", view.DiscoveryError)
		return
	}
	if len(view.Resources) == 0 {
		fmt.Fprintln(w, "No Plex servers found for this account.")
		return
	}
	fmt.Fprintln(w, "Plex servers:")
	for _, r := range view.Resources {
		mark := " "
		if r.Selected {
			mark = "x"
		}
		fmt.Fprintf(w, "  [%s] %s (%s)\n", mark, r.Name, r.ID)
	}
}

func printValidation(w io.Writer, verr *sourcedomain.ValidationError) {
	fields := make([]string, 0, len(verr.Fields))
	for field := range verr.Fields {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	for _, field := range fields {
		for _, msg := range verr.Fields[field] {
			fmt.Fprintf(w, "%s: %s\n", field, msg)
		}
	}
}

func printSource(w io.Writer, src sourcedomain.Source) {
	fmt.Fprintf(w, "slug:                %s\n", src.Slug)
	fmt.Fprintf(w, "name:                %s\n", src.Name)
	fmt.Fprintf(w, "enabled:             %t\n", src.Enabled)
	fmt.Fprintf(w, "client_id:           %s\n", src.ClientID)
	fmt.Fprintf(w, "user_matching_mode:  %s\n", src.UserMatchingMode)
	fmt.Fprintf(w, "allow_friends:       %t\n", src.AllowFriends)
	fmt.Fprintf(w, "allowed_servers:     %v\n", src.AllowedServers)
	fmt.Fprintf(w, "authentication_flow: %s\n", src.AuthenticationFlow)
	fmt.Fprintf(w, "enrollment_flow:     %s\n", src.EnrollmentFlow)
}
