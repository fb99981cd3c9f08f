package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/yukikurage/retail-tasks/internal/database"
	"github.com/yukikurage/retail-tasks/internal/maintenance"
)

const maintenanceTimeout = 30 * time.Minute

// cacheNote is appended to the help of commands that change users or teams.
const cacheNote = `

A running server caches the user/team directory and is not notified of these
changes. It keeps resolving task visibility with the previous team layout
until its cache expires (directory.cache_ttl, 30s by default) or it restarts.`

var (
	reconcileUsers []uint

	reassignUser      uint64
	reassignTeam      uint64
	reassignNoTeam    bool
	reassignReconcile bool
)

func init() {
	reconcileCmd.Flags().UintSliceVar(&reconcileUsers, "user", nil, "only reconcile tasks created by these user ids")

	reassignTeamCmd.Flags().Uint64Var(&reassignUser, "user", 0, "user id to move (required)")
	reassignTeamCmd.Flags().Uint64Var(&reassignTeam, "team", 0, "destination team id")
	reassignTeamCmd.Flags().BoolVar(&reassignNoTeam, "no-team", false, "remove the user from any team")
	reassignTeamCmd.Flags().BoolVar(&reassignReconcile, "reconcile", true, "rewrite the team of the user's existing tasks")
	_ = reassignTeamCmd.MarkFlagRequired("user")
	reassignTeamCmd.MarkFlagsMutuallyExclusive("team", "no-team")
	reassignTeamCmd.MarkFlagsOneRequired("team", "no-team")

	rootCmd.AddCommand(reconcileCmd, dedupeUsersCmd, reassignTeamCmd, importCmd)
}

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Rewrite task team and creator name from the creator's current profile",
	Long: `Rewrite the denormalized team_id and user_name of every task from its
creator's current profile. Running it twice changes nothing the second time.

Examples:
  retailtasks reconcile
  retailtasks reconcile --user 12 --user 15`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withMaintainer(func(ctx context.Context, m *maintenance.Maintainer) (interface{}, error) {
			ids := make([]uint64, len(reconcileUsers))
			for i, id := range reconcileUsers {
				ids[i] = uint64(id)
			}
			return m.ReconcileTaskAttribution(ctx, ids...)
		})
	},
}

var dedupeUsersCmd = &cobra.Command{
	Use:   "dedupe-users",
	Short: "Merge user profiles that share an email address",
	Long: `Merge user profiles whose email addresses match case-insensitively.
The oldest profile is kept; tasks, assignments and shares of the others are
moved onto it and the duplicates are soft-deleted.` + cacheNote,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withMaintainer(func(ctx context.Context, m *maintenance.Maintainer) (interface{}, error) {
			return m.DedupeUsers(ctx)
		})
	},
}

var reassignTeamCmd = &cobra.Command{
	Use:   "reassign-team",
	Short: "Move a user to another team",
	Long: `Move a user to another team (or to no team) and, unless --reconcile=false,
re-attribute the tasks they created.

Examples:
  retailtasks reassign-team --user 7 --team 3
  retailtasks reassign-team --user 7 --no-team --reconcile=false` + cacheNote,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		var teamID *uint64
		if !reassignNoTeam {
			id := reassignTeam
			teamID = &id
		}
		return withMaintainer(func(ctx context.Context, m *maintenance.Maintainer) (interface{}, error) {
			return m.ReassignUserTeam(ctx, reassignUser, teamID, reassignReconcile)
		})
	},
}

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import a JSON batch of teams, users and tasks",
	Long: `Import a JSON batch of teams, users and tasks, upserting by id. Every
reference must resolve inside the batch or against the database, otherwise
nothing is written. Use - to read from stdin.` + cacheNote,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

func runImport(cmd *cobra.Command, args []string) error {
	in := os.Stdin
	if args[0] != "-" {
		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("failed to open batch file %s: %w", args[0], err)
		}
		defer f.Close()
		in = f
	}

	batch, err := maintenance.DecodeBatch(in)
	if err != nil {
		return err
	}

	return withMaintainer(func(ctx context.Context, m *maintenance.Maintainer) (interface{}, error) {
		return m.ImportBatch(ctx, batch)
	})
}

// withMaintainer connects to the database, runs fn and prints its report.
func withMaintainer(fn func(context.Context, *maintenance.Maintainer) (interface{}, error)) error {
	_, logger, err := bootstrap()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	db := database.GetDB()
	if db == nil {
		return errors.New("database is not connected")
	}

	ctx, cancel := context.WithTimeout(context.Background(), maintenanceTimeout)
	defer cancel()

	report, err := fn(ctx, maintenance.New(db, logger))
	if err != nil {
		return err
	}
	return printJSON(os.Stdout, report)
}
