package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/iliyamo/resort-reservation/internal/config"
	"github.com/iliyamo/resort-reservation/internal/middleware"
	"github.com/iliyamo/resort-reservation/internal/utils"
)

// TokenOptions holds flags for the token command.
type TokenOptions struct {
	UserID uint64
	Role   string
	TTL    time.Duration
}

// NewTokenCommand creates the token command, which signs a bearer token
// with JWT_SECRET.  Identity management lives outside this service, so
// this is how operators and local development obtain tokens.
func NewTokenCommand() *cobra.Command {
	opts := &TokenOptions{}
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Sign an access token for a user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			role := middleware.Role(strings.ToUpper(opts.Role))
			if role != middleware.RoleGuest && role != middleware.RoleStaff {
				return fmt.Errorf("invalid role %q: must be GUEST or STAFF", opts.Role)
			}
			if opts.UserID == 0 {
				return fmt.Errorf("--user is required")
			}
			if opts.TTL <= 0 {
				return fmt.Errorf("--ttl must be positive")
			}
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			tok, err := utils.NewAccessToken(cfg.JWTSecret, opts.UserID, string(role), opts.TTL)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok.Token)
			return nil
		},
	}
	cmd.Flags().Uint64Var(&opts.UserID, "user", 0, "user id to put in the subject claim")
	cmd.Flags().StringVar(&opts.Role, "role", string(middleware.RoleGuest), "GUEST or STAFF")
	cmd.Flags().DurationVar(&opts.TTL, "ttl", time.Hour, "token lifetime")
	return cmd
}
