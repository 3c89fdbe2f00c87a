package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/csdesk/console-cs/internal/api"
)

var loginEmail string

// loginCmd authenticates and persists the bearer token in the local state
// database, so subsequent headless commands and `serve` start signed in.
var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Authenticate against the backend and store the session token",
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := newLogger("[login] ")
		st, client, err := openClient(logger)
		if err != nil {
			return err
		}
		defer st.Close()

		email := strings.TrimSpace(loginEmail)
		if email == "" {
			fmt.Print("Email: ")
			reader := bufio.NewReader(os.Stdin)
			line, err := reader.ReadString('\n')
			if err != nil {
				return err
			}
			email = strings.TrimSpace(line)
		}

		fmt.Print("Password: ")
		passwordBytes, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Println()
		if err != nil {
			return fmt.Errorf("reading password: %w", err)
		}

		if _, err := client.Login(cmd.Context(), email, string(passwordBytes)); err != nil {
			if errors.Is(err, api.ErrInvalidCredentials) {
				return fmt.Errorf("invalid email or password")
			}
			return err
		}

		user, err := client.Me(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("Signed in as %s <%s> (%s)\n", user.Name, user.Email, user.Role)
		return nil
	},
}

// logoutCmd discards the stored token.
var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Discard the stored session token",
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := newLogger("[logout] ")
		st, client, err := openClient(logger)
		if err != nil {
			return err
		}
		defer st.Close()

		if !client.HasToken() {
			fmt.Println("Not signed in")
			return nil
		}
		if err := client.ClearStoredToken(); err != nil {
			return err
		}
		fmt.Println("Signed out")
		return nil
	},
}

// whoamiCmd prints the current profile, validating the stored token.
var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the currently authenticated user",
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := newLogger("[whoami] ")
		st, client, err := openClient(logger)
		if err != nil {
			return err
		}
		defer st.Close()

		if !client.HasToken() {
			return fmt.Errorf("not signed in; run `console-cs login`")
		}
		user, err := client.Me(cmd.Context())
		if err != nil {
			if errors.Is(err, api.ErrSessionExpired) {
				return fmt.Errorf("session expired; run `console-cs login`")
			}
			return err
		}
		fmt.Printf("%s <%s> (%s) @ %s\n", user.Name, user.Email, user.Role, client.BaseURL())
		return nil
	},
}

func init() {
	loginCmd.Flags().StringVar(&loginEmail, "email", "", "Account email (prompted when omitted)")
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(whoamiCmd)
}
