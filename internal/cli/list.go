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
		Use:   "list",
		Short: "List records",
		Long:  "List records, most recently updated first. Listing does not bump access tracking.",
		Run:   runList,
	}

	cmd.Flags().String("tier", "", "Filter by tier")
	cmd.Flags().StringP("type", "t", "", "Filter by record type")
	cmd.Flags().Float64("min-salience", 0, "Minimum salience")
	cmd.Flags().IntP("limit", "l", 20, "Max results")

	RootCmd.AddCommand(cmd)
}

func runList(cmd *cobra.Command, args []string) {
	tier, _ := cmd.Flags().GetString("tier")
	recordType, _ := cmd.Flags().GetString("type")
	minSalience, _ := cmd.Flags().GetFloat64("min-salience")
	limit, _ := cmd.Flags().GetInt("limit")

	s, _, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	records, err := s.List(cmd.Context(), store.ListParams{
		Tier:        model.Tier(tier),
		Type:        recordType,
		MinSalience: minSalience,
		Limit:       limit,
	})
	if err != nil {
		exitErr("list", err)
	}

	if len(records) == 0 {
		fmt.Println("[]")
		return
	}

	b, _ := json.MarshalIndent(records, "", "  ")
	fmt.Println(string(b))
}
