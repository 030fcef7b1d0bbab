package main

import (
	"bufio"
	"context"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/redmonkez12/usergate/internal/auth"
)

func newRootCmd(open opener) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "usergatectl",
		Short:        "Administer usergate accounts",
		Long:         "Run schema migrations and list, block, unblock, delete or probe user accounts.",
		SilenceUsage: true,
	}

	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: withEnv(open, func(cmd *cobra.Command, e *env, _ []string) error {
			if err := e.migrate(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Migrations applied.")
			return nil
		}),
	}

	usersCmd := &cobra.Command{
		Use:   "users",
		Short: "Manage user accounts",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List non-deleted users, most recent login first",
		Args:  cobra.NoArgs,
		RunE:  withEnv(open, runList),
	}

	blockCmd := &cobra.Command{
		Use:   "block <id>...",
		Short: "Block users",
		Args:  cobra.MinimumNArgs(1),
		RunE: withEnv(open, func(cmd *cobra.Command, e *env, args []string) error {
			return runBulk(cmd, args, e.users.Block, "blocked")
		}),
	}

	unblockCmd := &cobra.Command{
		Use:   "unblock <id>...",
		Short: "Unblock users",
		Args:  cobra.MinimumNArgs(1),
		RunE: withEnv(open, func(cmd *cobra.Command, e *env, args []string) error {
			return runBulk(cmd, args, e.users.Unblock, "unblocked")
		}),
	}

	deleteCmd := &cobra.Command{
		Use:   "delete <id>...",
		Short: "Soft-delete users. Deleted accounts cannot be restored.",
		Args:  cobra.MinimumNArgs(1),
		RunE:  withEnv(open, runDelete),
	}
	deleteCmd.Flags().BoolP("yes", "y", false, "Skip confirmation prompt")

	statusCmd := &cobra.Command{
		Use:   "status <id>",
		Short: "Report whether an account is valid",
		Args:  cobra.ExactArgs(1),
		RunE:  withEnv(open, runStatus),
	}

	usersCmd.AddCommand(listCmd, blockCmd, unblockCmd, deleteCmd, statusCmd)
	rootCmd.AddCommand(migrateCmd, usersCmd)

	return rootCmd
}

// withEnv opens the environment for one command and closes it afterwards.
func withEnv(open opener, fn func(cmd *cobra.Command, e *env, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
			cmd.SetContext(ctx)
		}

		e, err := open(ctx)
		if err != nil {
			return err
		}
		defer e.close()

		return fn(cmd, e, args)
	}
}

func runList(cmd *cobra.Command, e *env, _ []string) error {
	users, err := e.users.List(cmd.Context())
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tEMAIL\tNAME\tLAST LOGIN\tBLOCKED")
	for _, u := range users {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%t\n",
			u.ID, u.Email, u.Name, u.LastLoginAt.UTC().Format(time.RFC3339), u.IsBlocked)
	}
	return tw.Flush()
}

func runBulk(cmd *cobra.Command, args []string, action func(context.Context, []uuid.UUID) (int64, error), verb string) error {
	ids, err := parseIDs(args)
	if err != nil {
		return err
	}

	n, err := action(cmd.Context(), ids)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%d of %d users %s.\n", n, len(ids), verb)
	return nil
}

func runDelete(cmd *cobra.Command, e *env, args []string) error {
	ids, err := parseIDs(args)
	if err != nil {
		return err
	}

	yes, _ := cmd.Flags().GetBool("yes")
	if !yes {
		fmt.Fprintf(cmd.OutOrStdout(), "This will permanently disable %d account(s).\n", len(ids))
		fmt.Fprint(cmd.OutOrStdout(), "Continue? [y/N] ")

		answer, _ := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
		answer = strings.TrimSpace(answer)
		if answer != "y" && answer != "Y" {
			fmt.Fprintln(cmd.OutOrStdout(), "Aborted.")
			return nil
		}
	}

	return runBulk(cmd, args, e.users.Delete, "deleted")
}

func runStatus(cmd *cobra.Command, e *env, args []string) error {
	ids, err := parseIDs(args)
	if err != nil {
		return err
	}

	status, err := e.auth.CheckStatus(cmd.Context(), ids[0])
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", ids[0], status)
	if status != auth.StatusValid {
		return auth.ErrUserInvalid
	}
	return nil
}

func parseIDs(args []string) ([]uuid.UUID, error) {
	ids := make([]uuid.UUID, 0, len(args))
	for _, arg := range args {
		id, err := uuid.Parse(arg)
		if err != nil {
			return nil, fmt.Errorf("invalid user id %q: %w", arg, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
