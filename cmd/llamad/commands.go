package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"llamad/internal/auth"
	"llamad/internal/catalog"
	"llamad/internal/supervisor"
)

func buildKeysCmd(a *app) *cobra.Command {
	keysCmd := &cobra.Command{Use: "keys", Short: "Manage API keys", RunE: func(cmd *cobra.Command, args []string) error {
		return fmt.Errorf("keys requires a subcommand: new")
	}}
	keysNew := &cobra.Command{
		Use:     "new <name> [description]",
		Short:   "Generate a new API key and store it in the key file",
		Example: "  llamad keys new ci \"key for the CI runner\" --auth-keys-file data/keys.json",
		Args:    cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.cfg.AuthKeysFile == "" {
				return errors.New("no key file configured; set --auth-keys-file or LLAMAD_AUTH_KEYS_FILE")
			}
			desc := ""
			if len(args) > 1 {
				desc = args[1]
			}
			token, k, err := auth.NewStore(a.cfg.AuthKeysFile).Generate(args[0], desc)
			if err != nil {
				return fmt.Errorf("generate key: %w", err)
			}
			a.log.Info().Str("name", k.Name).Str("file", a.cfg.AuthKeysFile).Msg("key created")
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	keysCmd.AddCommand(keysNew)
	return keysCmd
}

func buildModelsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List catalog models and their personalities",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := catalog.Load(a.cfg.ModelsFile)
			if err != nil {
				return fmt.Errorf("load catalog: %w", err)
			}
			out := cmd.OutOrStdout()
			personalities := cat.Personalities()
			for _, name := range cat.Names() {
				if p := personalities[name]; len(p) > 0 {
					fmt.Fprintf(out, "%s\t%s\n", name, strings.Join(p, ","))
				} else {
					fmt.Fprintln(out, name)
				}
			}
			return nil
		},
	}
}

func buildArgsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "args <model>",
		Short:   "Print the llama.cpp command line for a catalog model",
		Example: "  llamad args mistral-7b",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := catalog.Load(a.cfg.ModelsFile)
			if err != nil {
				return fmt.Errorf("load catalog: %w", err)
			}
			def, ok := cat[args[0]]
			if !ok {
				return supervisor.ErrModelNotFound(args[0])
			}
			argv := append([]string{a.cfg.LlamaBin}, catalog.BuildArgs(def.Params)...)
			fmt.Fprintln(cmd.OutOrStdout(), shellJoin(argv))
			return nil
		},
	}
}

// shellJoin renders argv for display, quoting arguments with whitespace or shell metacharacters.
func shellJoin(argv []string) string {
	parts := make([]string, len(argv))
	for i, s := range argv {
		if s == "" || strings.ContainsAny(s, " \t\n\"'\\$`*?[]{}()<>|&;#~") {
			parts[i] = strconv.Quote(s)
		} else {
			parts[i] = s
		}
	}
	return strings.Join(parts, " ")
}
