package main

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/Vartmor/CADLift-sub001/internal/config"
	"github.com/Vartmor/CADLift-sub001/internal/server"
)

var tokenUser string

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint an API token for local use",
	Long:  "Print a bearer token signed with JWT_SECRET. Without --user a fresh user ID is generated.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		token, userID, err := mintToken(tokenUser)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "user: %s\n", userID)
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

func init() {
	tokenCmd.Flags().StringVar(&tokenUser, "user", "", "User ID (UUID) to embed in the token")
	rootCmd.AddCommand(tokenCmd)
}

func mintToken(user string) (string, uuid.UUID, error) {
	userID := uuid.New()
	if user != "" {
		parsed, err := uuid.Parse(user)
		if err != nil {
			return "", uuid.Nil, fmt.Errorf("invalid --user: %w", err)
		}
		userID = parsed
	}
	jwtConfig, err := config.NewJWTConfig()
	if err != nil {
		return "", uuid.Nil, err
	}
	token, err := server.NewJWTService(jwtConfig).GenerateToken(userID)
	if err != nil {
		return "", uuid.Nil, err
	}
	return token, userID, nil
}
