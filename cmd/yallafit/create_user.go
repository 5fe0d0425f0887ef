package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"
)

var createUserRole string

var validRoles = map[string]bool{"Admin": true, "Coach": true, "Sportif": true}

// newUser is what the create-user prompt collects.
type newUser struct {
	FullName string
	Email    string
	Password string
	Role     string
}

// createUserCmd creates an account interactively. Coaches and admins can
// only be created here; the public API registers Sportif accounts only.
var createUserCmd = &cobra.Command{
	Use:   "create-user",
	Short: "Create a user with a bcrypt-hashed password",
	RunE: func(cmd *cobra.Command, args []string) error {
		u, err := promptUser(cmd.InOrStdin(), cmd.OutOrStdout(), createUserRole)
		if err != nil {
			return err
		}

		url, err := resolveDBURL()
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		conn, err := pgx.Connect(ctx, url)
		if err != nil {
			return fmt.Errorf("connect: %w", err)
		}
		defer conn.Close(context.Background())

		id, err := insertUser(ctx, conn, u)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "\nUser created successfully!\n")
		fmt.Fprintf(out, "  ID:    %d\n", id)
		fmt.Fprintf(out, "  Name:  %s\n", u.FullName)
		fmt.Fprintf(out, "  Email: %s\n", u.Email)
		fmt.Fprintf(out, "  Role:  %s\n", u.Role)
		return nil
	},
}

func init() {
	createUserCmd.Flags().StringVar(&createUserRole, "role", "Sportif", "Role: Admin, Coach or Sportif")
	rootCmd.AddCommand(createUserCmd)
}

// promptUser reads name, email and password lines from in.
func promptUser(in io.Reader, out io.Writer, role string) (newUser, error) {
	if !validRoles[role] {
		return newUser{}, fmt.Errorf("invalid role %q: must be Admin, Coach or Sportif", role)
	}
	reader := bufio.NewReader(in)
	ask := func(label string) string {
		fmt.Fprint(out, label+": ")
		line, _ := reader.ReadString('\n')
		return strings.TrimSpace(line)
	}

	u := newUser{Role: role}
	u.FullName = ask("Full name")
	u.Email = ask("Email")
	u.Password = ask("Password")

	switch {
	case u.FullName == "":
		return newUser{}, fmt.Errorf("full name is required")
	case !strings.Contains(u.Email, "@"):
		return newUser{}, fmt.Errorf("invalid email %q", u.Email)
	case len(u.Password) < 8:
		return newUser{}, fmt.Errorf("password must be at least 8 characters")
	}
	return u, nil
}

// insertUser stores the user, plus an empty athlete profile for Sportif accounts.
func insertUser(ctx context.Context, conn *pgx.Conn, u newUser) (int, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(u.Password), bcrypt.DefaultCost)
	if err != nil {
		return 0, fmt.Errorf("hash password: %w", err)
	}

	tx, err := conn.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	var id int
	err = tx.QueryRow(ctx,
		`INSERT INTO users (full_name, email, password, role)
		 VALUES ($1, $2, $3, $4) RETURNING id`,
		u.FullName, u.Email, string(hash), u.Role,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("create user: %w", err)
	}
	if u.Role == "Sportif" {
		if _, err := tx.Exec(ctx, "INSERT INTO athlete_profiles (user_id) VALUES ($1)", id); err != nil {
			return 0, fmt.Errorf("create athlete profile: %w", err)
		}
	}
	return id, tx.Commit(ctx)
}
