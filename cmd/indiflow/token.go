package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"indiflow/pkg/auth"
)

var (
	tokenSubject string
	tokenExpire  int
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue a bearer token for the HTTP API",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.JWT.Secret == "" {
			return errors.New("JWT_SECRET is not set")
		}
		expire := tokenExpire
		if expire <= 0 {
			expire = cfg.JWT.ExpireTime
		}
		token, err := auth.GenerateToken(tokenSubject, expire, []byte(cfg.JWT.Secret))
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

func init() {
	tokenCmd.Flags().StringVar(&tokenSubject, "subject", "cli", "token subject")
	tokenCmd.Flags().IntVar(&tokenExpire, "expire", 0, "lifetime in seconds (default JWT_EXPIRE_TIME)")
}
