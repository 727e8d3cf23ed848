package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/g1itchbot8888-del/agent-memory/internal/model"
)

func init() {
	cmd := &cobra.Command{
		Use:   "get [id]",
		Short: "Retrieve a record by id",
		Long:  "Retrieve a record by id. Access tracking is bumped. With --resolve the updates chain is followed to the live version; with --enrich related records come along.",
		Args:  cobra.ExactArgs(1),
		Run:   runGet,
	}

	cmd.Flags().Bool("resolve", false, "Follow updates edges to the live record")
	cmd.Flags().Bool("enrich", false, "Include records linked by extends/derives edges")

	RootCmd.AddCommand(cmd)
}

func runGet(cmd *cobra.Command, args []string) {
	resolve, _ := cmd.Flags().GetBool("resolve")
	enrich, _ := cmd.Flags().GetBool("enrich")

	s, _, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	rec, err := s.Get(cmd.Context(), args[0])
	if err != nil {
		exitErr("get", err)
	}

	if resolve {
		rec, err = s.Resolve(cmd.Context(), rec.ID)
		if err != nil {
			exitErr("resolve", err)
		}
	}

	if enrich {
		enriched, err := s.Enrich(cmd.Context(), []model.Record{*rec})
		if err != nil {
			exitErr("enrich", err)
		}
		b, _ := json.MarshalIndent(enriched[0], "", "  ")
		fmt.Println(string(b))
		return
	}

	b, _ := json.MarshalIndent(rec, "", "  ")
	fmt.Println(string(b))
}
