package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/g1itchbot8888-del/agent-memory/internal/model"
	"github.com/g1itchbot8888-del/agent-memory/internal/store"
)

func init() {
	cmd := &cobra.Command{
		Use:   "update [id]",
		Short: "Modify a record in place",
		Long:  "Modify a record's content, tier, type, salience, or metadata. A content change recomputes the embedding. To supersede rather than mutate, capture a new record and link it with updates.",
		Args:  cobra.ExactArgs(1),
		Run:   runUpdate,
	}

	cmd.Flags().String("content", "", "New content")
	cmd.Flags().String("tier", "", "New tier")
	cmd.Flags().StringP("type", "t", "", "New record type")
	cmd.Flags().Float64P("salience", "s", -1, "New salience 0-1")
	cmd.Flags().String("meta", "", "JSON metadata to merge in")

	RootCmd.AddCommand(cmd)
}

func runUpdate(cmd *cobra.Command, args []string) {
	var fields store.UpdateFields

	if cmd.Flags().Changed("content") {
		v, _ := cmd.Flags().GetString("content")
		fields.Content = &v
	}
	if cmd.Flags().Changed("tier") {
		v, _ := cmd.Flags().GetString("tier")
		t := model.Tier(v)
		fields.Tier = &t
	}
	if cmd.Flags().Changed("type") {
		v, _ := cmd.Flags().GetString("type")
		fields.Type = &v
	}
	if cmd.Flags().Changed("salience") {
		v, _ := cmd.Flags().GetFloat64("salience")
		fields.Salience = &v
	}
	if cmd.Flags().Changed("meta") {
		v, _ := cmd.Flags().GetString("meta")
		if err := json.Unmarshal([]byte(v), &fields.Metadata); err != nil {
			exitErr("parse --meta", err)
		}
	}

	s, _, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	rec, err := s.Update(cmd.Context(), args[0], fields)
	if err != nil {
		exitErr("update", err)
	}

	b, _ := json.MarshalIndent(rec, "", "  ")
	fmt.Println(string(b))
}
