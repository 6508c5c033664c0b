package main

import (
	"encoding/json"
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/totegamma/reputation-engine"
	"github.com/totegamma/reputation-engine/client"
)

func newClient() (*client.Client, error) {
	if serverURL == "" {
		return nil, errors.New("--server is required")
	}
	c := client.New(serverURL)
	if caller != "" {
		c = c.As(caller)
	}
	return c, nil
}

func runVersion(cmd *cobra.Command, _ []string) error {
	if serverURL == "" {
		fmt.Fprintln(cmd.OutOrStdout(), reputation.Version)
		return nil
	}
	c, err := newClient()
	if err != nil {
		return err
	}
	version, err := c.BuildVersion(cmd.Context())
	if err != nil {
		return errors.Wrap(err, "build version")
	}
	fmt.Fprintln(cmd.OutOrStdout(), version)
	return nil
}

func runGet(cmd *cobra.Command, args []string) error {
	c, err := newClient()
	if err != nil {
		return err
	}

	if showFull {
		data, err := c.GetUserReputationFull(cmd.Context(), args[0], args[1])
		if err != nil {
			return errors.Wrapf(err, "get reputation %s:%s", args[0], args[1])
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(data)
	}

	score, err := c.GetUserReputation(cmd.Context(), args[0], args[1])
	if err != nil {
		return errors.Wrapf(err, "get reputation %s:%s", args[0], args[1])
	}
	fmt.Fprintln(cmd.OutOrStdout(), score)
	return nil
}

func runRecalc(cmd *cobra.Command, args []string) error {
	c, err := newClient()
	if err != nil {
		return err
	}
	score, err := c.RecalculateReputation(cmd.Context(), args[0], args[1])
	if err != nil {
		return errors.Wrapf(err, "recalculate reputation %s:%s", args[0], args[1])
	}
	fmt.Fprintln(cmd.OutOrStdout(), score)
	return nil
}
