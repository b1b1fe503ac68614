package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/arloliu/busbench/sas"
)

type sasFlags struct {
	entity   string
	validity time.Duration
}

func newSASCmd(g *globalFlags) *cobra.Command {
	f := &sasFlags{}

	cmd := &cobra.Command{
		Use:     "sas [keyname]",
		Aliases: []string{"csas"},
		Short:   "Sign a shared access token",
		Long: `Signs a shared access token for the namespace, or for an entity of it,
and prints the audience, expiry and token.

The key name argument overrides --key-name and the configuration file.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.loadConfig(cmd)
			if err != nil {
				return err
			}
			if len(args) == 1 {
				cfg.Auth.KeyName = args[0]
			}
			if cmd.Flags().Changed("validity") {
				cfg.Auth.Validity = f.validity
			}

			return runSAS(cmd, cfg.Namespace, f.entity, cfg.Auth.KeyName, cfg.Auth.Key, cfg.Auth.Validity)
		},
	}

	cmd.Flags().StringVarP(&f.entity, "entity", "e", "", "entity path the token is scoped to (namespace when empty)")
	cmd.Flags().DurationVar(&f.validity, "validity", sas.DefaultValidity, "token validity")

	return cmd
}

func runSAS(cmd *cobra.Command, namespace, entity, keyName, key string, validity time.Duration) error {
	audience, err := sas.BuildAudience(namespace, entity)
	if err != nil {
		return err
	}

	signer, err := sas.NewSigner(keyName, []byte(key), sas.WithValidity(validity))
	if err != nil {
		return err
	}
	tok, err := signer.Token(audience)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Audience:\t%s\n", tok.Audience)
	fmt.Fprintf(out, "Key name:\t%s\n", keyName)
	fmt.Fprintf(out, "Expires:\t%s\n", tok.Expiry().UTC().Format(time.RFC3339))
	fmt.Fprintln(out)
	fmt.Fprintln(out, tok.Value)

	return nil
}
