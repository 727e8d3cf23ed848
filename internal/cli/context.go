package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/g1itchbot8888-del/agent-memory/internal/model"
)

func init() {
	identityCmd := &cobra.Command{
		Use:   "identity [key] [value]",
		Short: "Show or set identity context",
		Long:  "With no args, print the identity key-value table. With a key and value, set that entry.",
		Args:  cobra.RangeArgs(0, 2),
		Run:   runIdentity,
	}
	activeCmd := &cobra.Command{
		Use:   "active [key] [value]",
		Short: "Show or set active working context",
		Long:  "With no args, print the active context table. With a key and value, set that entry.",
		Args:  cobra.RangeArgs(0, 2),
		Run:   runActive,
	}
	startupCmd := &cobra.Command{
		Use:   "startup",
		Short: "Render the session startup block",
		Long:  "Render identity and active context as a markdown block for injecting at session start.",
		Run:   runStartup,
	}

	RootCmd.AddCommand(identityCmd, activeCmd, startupCmd)
}

func runIdentity(cmd *cobra.Command, args []string) {
	s, _, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	switch len(args) {
	case 2:
		if err := s.SetIdentity(cmd.Context(), args[0], args[1]); err != nil {
			exitErr("identity", err)
		}
		fmt.Printf("set %s\n", args[0])
	case 1:
		exitErr("identity", fmt.Errorf("a value is required when setting a key"))
	default:
		entries, err := s.Identity(cmd.Context())
		if err != nil {
			exitErr("identity", err)
		}
		printEntries(entries)
	}
}

func runActive(cmd *cobra.Command, args []string) {
	s, _, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	switch len(args) {
	case 2:
		if err := s.SetActive(cmd.Context(), args[0], args[1]); err != nil {
			exitErr("active", err)
		}
		fmt.Printf("set %s\n", args[0])
	case 1:
		exitErr("active", fmt.Errorf("a value is required when setting a key"))
	default:
		entries, err := s.Active(cmd.Context())
		if err != nil {
			exitErr("active", err)
		}
		printEntries(entries)
	}
}

func runStartup(cmd *cobra.Command, args []string) {
	s, _, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	block, err := s.StartupContext(cmd.Context())
	if err != nil {
		exitErr("startup", err)
	}
	fmt.Println(block)
}

func printEntries(entries map[string]model.Entry) {
	if len(entries) == 0 {
		fmt.Println("{}")
		return
	}
	b, _ := json.MarshalIndent(entries, "", "  ")
	fmt.Println(string(b))
}
