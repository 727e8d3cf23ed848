package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/g1itchbot8888-del/agent-memory/internal/model"
)

func init() {
	cmd := &cobra.Command{
		Use:   "link [source-id] [relation] [target-id]",
		Short: "Link two records",
		Long:  "Add a directed edge between records. Relations: updates, extends, derives. Linking the same pair twice is a no-op.",
		Args:  cobra.ExactArgs(3),
		Run:   runLink,
	}

	cmd.Flags().Bool("remove", false, "Remove the edge instead of adding it")

	RootCmd.AddCommand(cmd)
}

func runLink(cmd *cobra.Command, args []string) {
	remove, _ := cmd.Flags().GetBool("remove")
	source, rel, target := args[0], model.Relation(args[1]), args[2]

	s, _, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	if remove {
		if err := s.Unlink(cmd.Context(), source, target, rel); err != nil {
			exitErr("unlink", err)
		}
		fmt.Printf("unlinked %s -%s-> %s\n", source, rel, target)
		return
	}

	edge, err := s.Link(cmd.Context(), source, target, rel)
	if err != nil {
		exitErr("link", err)
	}

	b, _ := json.MarshalIndent(edge, "", "  ")
	fmt.Println(string(b))
}
