package cli

import (
	"fmt"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/pratik-mahalle/muscleai/internal/auth"
)

func newAuthCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Authentication commands",
	}

	cmd.AddCommand(newAuthLoginCmd())
	cmd.AddCommand(newAuthLogoutCmd())
	cmd.AddCommand(newAuthWhoamiCmd())
	cmd.AddCommand(newAuthMintCmd())

	return cmd
}

func newAuthLoginCmd() *cobra.Command {
	var token, userID string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Store a bearer token (or a user ID for proxy-trusted servers)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if token == "" && userID == "" {
				token = promptPassword("Token: ")
			}
			if token == "" && userID == "" {
				return fmt.Errorf("a token or --user-id is required")
			}

			viper.Set("auth.token", token)
			viper.Set("auth.user_id", userID)

			if _, err := writeConfig(); err != nil {
				return fmt.Errorf("failed to save credentials: %w", err)
			}

			if token != "" {
				if claims, err := peekClaims(token); err == nil && claims.Subject != "" {
					fmt.Printf("Logged in as %s\n", claims.Subject)
					return nil
				}
				fmt.Println("Token saved")
				return nil
			}
			fmt.Printf("Using user ID %s\n", userID)
			return nil
		},
	}

	cmd.Flags().StringVar(&token, "token", "", "bearer token")
	cmd.Flags().StringVar(&userID, "user-id", "", "send X-User-ID instead of a token")

	return cmd
}

func newAuthLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Clear stored credentials",
		RunE: func(cmd *cobra.Command, args []string) error {
			viper.Set("auth.token", "")
			viper.Set("auth.user_id", "")

			if _, err := writeConfig(); err != nil {
				return fmt.Errorf("failed to clear credentials: %w", err)
			}

			fmt.Println("Logged out successfully")
			return nil
		},
	}
}

type whoami struct {
	UserID    string     `json:"userId" yaml:"userId"`
	Email     string     `json:"email,omitempty" yaml:"email,omitempty"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty" yaml:"expiresAt,omitempty"`
	Source    string     `json:"source" yaml:"source"`
}

func newAuthWhoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the stored identity",
		RunE: func(cmd *cobra.Command, args []string) error {
			var info whoami
			if token := viper.GetString("auth.token"); token != "" {
				claims, err := peekClaims(token)
				if err != nil {
					return fmt.Errorf("stored token is unreadable: %w", err)
				}
				info = whoami{UserID: claims.Subject, Email: claims.Email, Source: "token"}
				if claims.ExpiresAt != nil {
					exp := claims.ExpiresAt.Time
					info.ExpiresAt = &exp
				}
			} else if userID := viper.GetString("auth.user_id"); userID != "" {
				info = whoami{UserID: userID, Source: "header"}
			} else {
				return fmt.Errorf("not authenticated. Run 'muscleai auth login' first")
			}

			if getOutputFormat() != "table" {
				return printOutput(info)
			}

			fmt.Printf("User:     %s\n", info.UserID)
			if info.Email != "" {
				fmt.Printf("Email:    %s\n", info.Email)
			}
			if info.ExpiresAt != nil {
				fmt.Printf("Expires:  %s\n", info.ExpiresAt.Format(time.RFC1123))
			}
			fmt.Printf("Source:   %s\n", info.Source)
			return nil
		},
	}
}

func newAuthMintCmd() *cobra.Command {
	var userID, email, secret string
	var ttl time.Duration
	var save bool

	cmd := &cobra.Command{
		Use:   "mint",
		Short: "Sign a development token with the server's JWT secret",
		RunE: func(cmd *cobra.Command, args []string) error {
			if secret == "" {
				secret = os.Getenv("JWT_SECRET")
			}
			if userID == "" || secret == "" {
				return fmt.Errorf("--user-id and --secret (or JWT_SECRET) are required")
			}

			token, err := auth.MintToken(userID, email, secret, ttl)
			if err != nil {
				return err
			}

			if save {
				viper.Set("auth.token", token)
				viper.Set("auth.user_id", "")
				if _, err := writeConfig(); err != nil {
					return fmt.Errorf("failed to save credentials: %w", err)
				}
			}

			fmt.Println(token)
			return nil
		},
	}

	cmd.Flags().StringVar(&userID, "user-id", "", "token subject")
	cmd.Flags().StringVar(&email, "email", "", "email claim")
	cmd.Flags().StringVar(&secret, "secret", "", "HS256 signing secret")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	cmd.Flags().BoolVar(&save, "save", false, "store the token as the active credential")

	return cmd
}

// peekClaims reads the claims without checking the signature; the server does that
func peekClaims(token string) (*auth.Claims, error) {
	claims := &auth.Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, err
	}
	return claims, nil
}

func promptPassword(prompt string) string {
	fmt.Print(prompt)
	password, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(password))
}
