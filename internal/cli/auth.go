package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/existflow/quizdesk/internal/api"
	"github.com/existflow/quizdesk/internal/auth"
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage authentication",
	Long:  `Sign in to the assessment platform and manage the stored session.`,
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in with email and password",
	RunE:  runLogin,
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Sign out and forget the stored session",
	RunE:  runLogout,
}

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Create a new account",
	RunE:  runRegister,
}

var forgotCmd = &cobra.Command{
	Use:   "forgot-password",
	Short: "Request a password reset email",
	RunE:  runForgot,
}

var resetCmd = &cobra.Command{
	Use:   "reset-password",
	Short: "Set a new password using a reset token",
	RunE:  runReset,
}

var whoamiCmd = &cobra.Command{
	Use:     "whoami",
	Aliases: []string{"status"},
	Short:   "Show the signed-in user and token validity",
	RunE:    runWhoami,
}

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Exchange the refresh token for a new token pair",
	RunE:  runRefresh,
}

func init() {
	authCmd.AddCommand(loginCmd)
	authCmd.AddCommand(logoutCmd)
	authCmd.AddCommand(registerCmd)
	authCmd.AddCommand(forgotCmd)
	authCmd.AddCommand(resetCmd)
	authCmd.AddCommand(whoamiCmd)
	authCmd.AddCommand(refreshCmd)

	loginCmd.Flags().String("email", "", "Account email")
	forgotCmd.Flags().String("email", "", "Account email")
	resetCmd.Flags().String("token", "", "Reset token from the email link")
}

var stdin = bufio.NewReader(os.Stdin)

func prompt(label string) string {
	fmt.Print(label)
	line, _ := stdin.ReadString('\n')
	return strings.TrimSpace(line)
}

func promptPassword(label string) string {
	fmt.Print(label)
	b, _ := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	return string(b)
}

// explain turns auth errors into what the user should see
func explain(err error) error {
	var ve *auth.ValidationError
	switch {
	case errors.As(err, &ve):
		return fmt.Errorf("%s", ve.Message)
	case errors.Is(err, api.ErrInvalidCredentials):
		return fmt.Errorf("%s", api.Message(err, "Invalid email or password"))
	case errors.Is(err, api.ErrNetworkFailure):
		return fmt.Errorf("cannot reach %s: check your connection", cfg.API.BaseURL)
	case errors.Is(err, api.ErrServerError):
		return fmt.Errorf("server error, please try again later")
	}
	return err
}

func runLogin(cmd *cobra.Command, args []string) error {
	email, _ := cmd.Flags().GetString("email")
	if email == "" {
		email = prompt("Email: ")
	}
	password := promptPassword("Password: ")

	return withApp(cmd, func(ctx context.Context, a *app) error {
		fmt.Println("🔄 Logging in...")
		user, err := a.auth.Login(ctx, email, password)
		if err != nil {
			return explain(err)
		}
		fmt.Printf("✅ Logged in as %s (%s)\n", user.Name, user.Role)
		return nil
	})
}

func runLogout(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(ctx context.Context, a *app) error {
		st, err := a.session.Rehydrate(ctx)
		if err != nil {
			return err
		}
		if !st.HasTokens() {
			fmt.Println("Not logged in.")
			return nil
		}
		if err := a.auth.Logout(ctx); err != nil {
			return err
		}
		fmt.Println("✅ Logged out successfully.")
		return nil
	})
}

func runRegister(cmd *cobra.Command, args []string) error {
	name := prompt("Name: ")
	email := prompt("Email: ")
	password := promptPassword("Password: ")
	confirm := promptPassword("Confirm Password: ")

	if password != confirm {
		return fmt.Errorf("passwords do not match")
	}

	return withApp(cmd, func(ctx context.Context, a *app) error {
		fmt.Println("🔄 Creating account...")
		user, err := a.auth.Register(ctx, name, email, password)
		if err != nil {
			return explain(err)
		}
		fmt.Printf("✅ Account created, logged in as %s\n", user.Name)
		return nil
	})
}

func runForgot(cmd *cobra.Command, args []string) error {
	email, _ := cmd.Flags().GetString("email")
	if email == "" {
		email = prompt("Email: ")
	}
	return withApp(cmd, func(ctx context.Context, a *app) error {
		msg, err := a.auth.ForgotPassword(ctx, email)
		if err != nil {
			return explain(err)
		}
		if msg == "" {
			msg = "If an account exists for that email, a reset link has been sent."
		}
		fmt.Println("📬 " + msg)
		return nil
	})
}

func runReset(cmd *cobra.Command, args []string) error {
	token, _ := cmd.Flags().GetString("token")
	if token == "" {
		token = prompt("Reset token: ")
	}
	password := promptPassword("New password: ")
	confirm := promptPassword("Confirm Password: ")

	return withApp(cmd, func(ctx context.Context, a *app) error {
		msg, err := a.auth.ResetPassword(ctx, token, password, confirm)
		if err != nil {
			return explain(err)
		}
		if msg == "" {
			msg = "Password reset. You can now log in."
		}
		fmt.Println("✅ " + msg)
		return nil
	})
}

func runWhoami(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(ctx context.Context, a *app) error {
		if _, err := a.session.Rehydrate(ctx); err != nil {
			return err
		}
		st := a.auth.Whoami(ctx)
		if !st.LoggedIn {
			fmt.Println("Not logged in.")
			return nil
		}
		if st.User != nil {
			fmt.Printf("User:    %s <%s>\n", st.User.Name, st.User.Email)
			fmt.Printf("Role:    %s\n", st.User.Role)
		}
		if st.Valid {
			fmt.Println("Token:   valid")
		} else {
			fmt.Printf("Token:   not valid (%s)\n", st.Reason)
		}
		if !st.ExpiresAt.IsZero() {
			fmt.Printf("Expires: %s (in %s)\n", st.ExpiresAt.Local().Format(time.RFC1123),
				time.Until(st.ExpiresAt).Round(time.Second))
		}
		fmt.Printf("Server:  %s\n", a.api.BaseURL())
		return nil
	})
}

func runRefresh(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(ctx context.Context, a *app) error {
		st, err := a.session.Rehydrate(ctx)
		if err != nil {
			return err
		}
		if st.RefreshToken == "" {
			return fmt.Errorf("not logged in: run 'quizdesk auth login'")
		}
		fmt.Println("🔄 Refreshing session...")
		if _, err := a.auth.Refresh(ctx); err != nil {
			if errors.Is(err, api.ErrRefreshFailed) {
				return fmt.Errorf("session expired, please log in again")
			}
			return explain(err)
		}
		fmt.Println("✅ Session refreshed.")
		return nil
	})
}
