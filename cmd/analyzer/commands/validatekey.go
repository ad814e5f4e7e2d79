package commands

import (
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"tft-analyzer/internal/riot"
)

func newValidateKeyCmd(s *session) *cobra.Command {
	var key string
	cmd := &cobra.Command{
		Use:   "validate-key",
		Short: "Check that a Riot API key is accepted.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if key == "" {
				key = s.cfg.Riot.APIKey
			}
			v := riot.NewKeyValidator(s.cfg.Riot, riot.WithValidatorLogger(s.logger))
			ok, err := v.ValidateKey(cmd.Context(), key)
			if err != nil {
				return errors.Wrap(err, "could not validate key")
			}
			if !ok {
				fmt.Fprintln(s.out, "Key rejected.")
				return errors.Wrap(riot.ErrUnauthorized, "API key rejected")
			}
			fmt.Fprintln(s.out, "Key is valid.")
			return nil
		},
	}
	cmd.Flags().StringVar(&key, "key", "", "key to check (defaults to RIOT_API_KEY)")
	return cmd
}
