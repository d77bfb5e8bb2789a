package cli

import (
	"context"
	"os"

	"github.com/nimburion/movieship/pkg/catalog"
	"github.com/nimburion/movieship/pkg/controller"
	"github.com/spf13/cobra"
)

// userAction runs an operation on behalf of the subject of the --token bearer token.
type userAction func(ctx context.Context, s *session, sub string, args []string) (any, error)

// publicAction runs an operation that needs no identity.
type publicAction func(ctx context.Context, s *session, args []string) (any, error)

func (g *globals) runPublic(action publicAction) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx := withCorrelationID(cmd.Context())
		s, err := g.openSession(ctx)
		if err != nil {
			return err
		}
		defer s.Close(ctx)

		data, err := action(ctx, s, args)
		return render(cmd.OutOrStdout(), data, err)
	}
}

func (g *globals) runUser(token *string, action userAction) func(*cobra.Command, []string) error {
	return g.runPublic(func(ctx context.Context, s *session, args []string) (any, error) {
		raw := *token
		if raw == "" {
			raw = os.Getenv(g.opts.EnvPrefix + "_TOKEN")
		}
		sub, err := s.subject(ctx, raw)
		if err != nil {
			return nil, err
		}
		s.log.WithContext(ctx).Debug("acting on behalf of subject", "sub", sub)
		return action(ctx, s, sub, args)
	})
}

func tokenFlag(cmd *cobra.Command, token *string, envPrefix string) {
	cmd.PersistentFlags().StringVar(token, "token", "", "bearer token of the acting user (defaults to $"+envPrefix+"_TOKEN)")
}

func dataFlag(cmd *cobra.Command, data *string) {
	cmd.Flags().StringVarP(data, "data", "d", "", `request body as extended JSON, or @file, or @- for stdin`)
}

func newProfileCommand(g *globals) *cobra.Command {
	var token string
	profileCmd := &cobra.Command{
		Use:   "profile",
		Short: "Manage the acting user's profile",
	}
	tokenFlag(profileCmd, &token, g.opts.EnvPrefix)

	getCmd := &cobra.Command{
		Use:   "get",
		Short: "Show the profile with its watchlists",
		Args:  cobra.NoArgs,
		RunE: g.runUser(&token, func(ctx context.Context, s *session, sub string, _ []string) (any, error) {
			return s.catalog.GetProfile(ctx, sub)
		}),
	}

	var createData string
	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create the profile",
		Args:  cobra.NoArgs,
	}
	createCmd.RunE = g.runUser(&token, func(ctx context.Context, s *session, sub string, _ []string) (any, error) {
		input, err := parseDocument(orEmptyObject(createData), createCmd.InOrStdin())
		if err != nil {
			return nil, err
		}
		return s.catalog.CreateProfile(ctx, sub, input)
	})
	dataFlag(createCmd, &createData)

	var updateData string
	updateCmd := &cobra.Command{
		Use:   "update",
		Short: "Update profile fields, e.g. the display name",
		Args:  cobra.NoArgs,
	}
	updateCmd.RunE = g.runUser(&token, func(ctx context.Context, s *session, sub string, _ []string) (any, error) {
		input, err := parseDocument(updateData, updateCmd.InOrStdin())
		if err != nil {
			return nil, err
		}
		return s.catalog.UpdateProfile(ctx, sub, input)
	})
	dataFlag(updateCmd, &updateData)

	var entry catalog.WatchlistEntry
	addCmd := &cobra.Command{
		Use:   "add-to-watchlist",
		Short: "Add a title to a named watchlist embedded in the profile",
		Args:  cobra.NoArgs,
		RunE: g.runUser(&token, func(ctx context.Context, s *session, sub string, _ []string) (any, error) {
			if err := controller.ValidateInput(entry); err != nil {
				return nil, err
			}
			return s.catalog.AddToWatchlist(ctx, sub, entry)
		}),
	}
	addCmd.Flags().StringVar(&entry.Title, "title", "", "watchlist title")
	addCmd.Flags().StringVar(&entry.IMDbID, "imdb-id", "", "IMDb id of the title to add")

	profileCmd.AddCommand(getCmd, createCmd, updateCmd, addCmd)
	return profileCmd
}

func newReviewCommand(g *globals) *cobra.Command {
	var token string
	reviewCmd := &cobra.Command{
		Use:   "review",
		Short: "List a title's reviews and manage the acting user's review of it",
	}
	tokenFlag(reviewCmd, &token, g.opts.EnvPrefix)

	var search searchFlags
	listCmd := &cobra.Command{
		Use:   "list <imdb_id>",
		Short: "List the reviews of a title, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: g.runPublic(func(ctx context.Context, s *session, args []string) (any, error) {
			values, err := search.values()
			if err != nil {
				return nil, err
			}
			return s.catalog.ListReviews(ctx, args[0], values)
		}),
	}
	search.register(listCmd)

	getCmd := &cobra.Command{
		Use:   "get <imdb_id>",
		Short: "Show the acting user's review of a title",
		Args:  cobra.ExactArgs(1),
		RunE: g.runUser(&token, func(ctx context.Context, s *session, sub string, args []string) (any, error) {
			return s.catalog.GetReview(ctx, args[0], sub)
		}),
	}

	var createData string
	createCmd := &cobra.Command{
		Use:   "create <imdb_id>",
		Short: "Review a title",
		Args:  cobra.ExactArgs(1),
	}
	createCmd.RunE = g.runUser(&token, func(ctx context.Context, s *session, sub string, args []string) (any, error) {
		input, err := parseDocument(createData, createCmd.InOrStdin())
		if err != nil {
			return nil, err
		}
		return s.catalog.CreateReview(ctx, args[0], sub, input)
	})
	dataFlag(createCmd, &createData)

	var updateData string
	updateCmd := &cobra.Command{
		Use:   "update <imdb_id>",
		Short: "Update the acting user's review of a title",
		Args:  cobra.ExactArgs(1),
	}
	updateCmd.RunE = g.runUser(&token, func(ctx context.Context, s *session, sub string, args []string) (any, error) {
		input, err := parseDocument(updateData, updateCmd.InOrStdin())
		if err != nil {
			return nil, err
		}
		return s.catalog.UpdateReview(ctx, args[0], sub, input)
	})
	dataFlag(updateCmd, &updateData)

	deleteCmd := &cobra.Command{
		Use:   "delete <imdb_id>",
		Short: "Delete the acting user's review of a title",
		Args:  cobra.ExactArgs(1),
		RunE: g.runUser(&token, func(ctx context.Context, s *session, sub string, args []string) (any, error) {
			return s.catalog.DeleteReview(ctx, args[0], sub)
		}),
	}

	reviewCmd.AddCommand(listCmd, getCmd, createCmd, updateCmd, deleteCmd)
	return reviewCmd
}

func newWatchlistCommand(g *globals) *cobra.Command {
	var token string
	watchlistCmd := &cobra.Command{
		Use:   "watchlist",
		Short: "Manage the acting user's standalone watchlists",
	}
	tokenFlag(watchlistCmd, &token, g.opts.EnvPrefix)

	var search searchFlags
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List the acting user's watchlists",
		Args:  cobra.NoArgs,
		RunE: g.runUser(&token, func(ctx context.Context, s *session, sub string, _ []string) (any, error) {
			values, err := search.values()
			if err != nil {
				return nil, err
			}
			return s.catalog.ListWatchlists(ctx, sub, values)
		}),
	}
	search.register(listCmd)

	getCmd := &cobra.Command{
		Use:   "get <id>",
		Short: "Show one watchlist with its movies",
		Args:  cobra.ExactArgs(1),
		RunE: g.runUser(&token, func(ctx context.Context, s *session, sub string, args []string) (any, error) {
			return s.catalog.GetWatchlist(ctx, sub, args[0])
		}),
	}

	var createData string
	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create a watchlist; the title must be unique per user",
		Args:  cobra.NoArgs,
	}
	createCmd.RunE = g.runUser(&token, func(ctx context.Context, s *session, sub string, _ []string) (any, error) {
		input, err := parseDocument(createData, createCmd.InOrStdin())
		if err != nil {
			return nil, err
		}
		return s.catalog.CreateWatchlist(ctx, sub, input)
	})
	dataFlag(createCmd, &createData)

	var updateData string
	updateCmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update a watchlist's title or titles",
		Args:  cobra.ExactArgs(1),
	}
	updateCmd.RunE = g.runUser(&token, func(ctx context.Context, s *session, sub string, args []string) (any, error) {
		input, err := parseDocument(updateData, updateCmd.InOrStdin())
		if err != nil {
			return nil, err
		}
		return s.catalog.UpdateWatchlist(ctx, sub, args[0], input)
	})
	dataFlag(updateCmd, &updateData)

	deleteCmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a watchlist",
		Args:  cobra.ExactArgs(1),
		RunE: g.runUser(&token, func(ctx context.Context, s *session, sub string, args []string) (any, error) {
			return s.catalog.DeleteWatchlist(ctx, sub, args[0])
		}),
	}

	watchlistCmd.AddCommand(listCmd, getCmd, createCmd, updateCmd, deleteCmd)
	return watchlistCmd
}

func orEmptyObject(raw string) string {
	if raw == "" {
		return "{}"
	}
	return raw
}
