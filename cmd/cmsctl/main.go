// Command cmsctl is the operator tool for the CMS session service:
// schema migration, password hashing for seed data, role grants and
// refresh token revocation.
package main

import (
	"bufio"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/cms-backend/internal/auth"
	"github.com/iliyamo/cms-backend/internal/config"
	"github.com/iliyamo/cms-backend/internal/database"
	"github.com/iliyamo/cms-backend/internal/model"
	"github.com/iliyamo/cms-backend/internal/repository"
	"github.com/iliyamo/cms-backend/internal/utils"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "cmsctl",
		Short:        "Operate the CMS session service",
		SilenceUsage: true,
		PersistentPreRun: func(*cobra.Command, []string) {
			_ = godotenv.Load()
		},
	}
	cmd.AddCommand(migrateCmd(), hashPasswordCmd(), grantRoleCmd(), revokeCmd())
	return cmd
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the session tables if they do not exist",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := openDB()
			if err != nil {
				return err
			}
			defer db.Close()
			if err := database.Migrate(cmd.Context(), db); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "schema up to date")
			return nil
		},
	}
}

func hashPasswordCmd() *cobra.Command {
	var (
		legacy bool
		cost   int
	)
	cmd := &cobra.Command{
		Use:   "hash-password [password]",
		Short: "Print a stored password hash (argon2id, or bcrypt with --legacy)",
		Long: `Print the hash to store in users.password_hash.  The password is
read from the first argument or, when absent, from the first line of stdin.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			plain, err := passwordArg(args, cmd.InOrStdin())
			if err != nil {
				return err
			}
			var hash string
			if legacy {
				hash, err = utils.HashPassword(plain, cost)
			} else {
				hash, err = auth.HashPassword(plain)
			}
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}
	cmd.Flags().BoolVar(&legacy, "legacy", false, "emit a bcrypt hash")
	cmd.Flags().IntVar(&cost, "cost", bcrypt.DefaultCost, "bcrypt cost for --legacy")
	return cmd
}

func grantRoleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "grant-role <email> <admin|moderator|user>",
		Short: "Assign a role to an existing account",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			role := model.Role(strings.ToLower(args[1]))
			if !role.Valid() {
				return fmt.Errorf("unknown role %q", args[1])
			}
			db, err := openDB()
			if err != nil {
				return err
			}
			defer db.Close()

			ctx := cmd.Context()
			u, err := repository.NewUserRepo(db).FindUserByEmail(ctx, args[0])
			if errors.Is(err, repository.ErrNotFound) {
				return fmt.Errorf("no account for %s", args[0])
			}
			if err != nil {
				return err
			}
			if err := repository.NewRoleRepo(db).AssignRole(ctx, u.ID, role); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s is now %s (effective on next refresh)\n", u.Email, role)
			return nil
		},
	}
}

func revokeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "revoke <jti>...",
		Short: "Revoke refresh tokens by id",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDB()
			if err != nil {
				return err
			}
			defer db.Close()

			tokens := repository.NewTokenRepo(db)
			now := time.Now().UTC().Truncate(time.Microsecond)
			for _, jti := range args {
				if err := tokens.Revoke(cmd.Context(), jti, now); err != nil {
					return fmt.Errorf("revoke %s: %w", jti, err)
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "revoked %d token(s)\n", len(args))
			return nil
		},
	}
}

func openDB() (*sql.DB, error) {
	cfg := config.Load()
	return database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
}

func passwordArg(args []string, in io.Reader) (string, error) {
	if len(args) == 1 {
		return args[0], nil
	}
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return "", errors.New("empty password")
	}
	return line, nil
}
