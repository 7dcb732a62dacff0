package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonathan/jobstage/internal/config"
	"github.com/jonathan/jobstage/internal/server"
	"github.com/jonathan/jobstage/internal/server/middleware"
)

var (
	tokenSubject string
	tokenRole    string
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue a bearer token for the admin API",
	Long:  `Sign a token with JWT_SECRET for issuer JWT_ISSUER (default "jobstage"), valid for JWT_EXPIRATION_HOURS (default 24).`,
	Args:  cobra.NoArgs,
	RunE:  runToken,
}

func init() {
	tokenCmd.Flags().StringVar(&tokenSubject, "subject", "", "Operator name recorded in the token (required)")
	tokenCmd.Flags().StringVar(&tokenRole, "role", middleware.RoleAdmin, "Role granted by the token")
	_ = tokenCmd.MarkFlagRequired("subject")
	rootCmd.AddCommand(tokenCmd)
}

func runToken(cmd *cobra.Command, _ []string) error {
	jwtCfg, err := config.NewJWTConfig()
	if err != nil {
		return err
	}
	token, err := server.NewJWTService(jwtCfg).GenerateToken(tokenSubject, tokenRole)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), token)
	return nil
}
