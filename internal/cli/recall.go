package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/g1itchbot8888-del/agent-memory/internal/model"
	"github.com/g1itchbot8888-del/agent-memory/internal/store"
)

func init() {
	cmd := &cobra.Command{
		Use:   "recall [query]",
		Short: "Search memories semantically",
		Long:  "Search record content by embedding similarity, falling back to keyword match when no provider is available. Hits resolve through updates chains to the live version.",
		Args:  cobra.MinimumNArgs(1),
		Run:   runRecall,
	}

	cmd.Flags().String("tier", "", "Filter by tier")
	cmd.Flags().StringP("type", "t", "", "Filter by record type")
	cmd.Flags().Float64("min-salience", 0, "Minimum salience")
	cmd.Flags().IntP("limit", "l", 10, "Max results")
	cmd.Flags().Bool("no-resolve", false, "Return raw hits without following updates chains")

	RootCmd.AddCommand(cmd)
}

func runRecall(cmd *cobra.Command, args []string) {
	tier, _ := cmd.Flags().GetString("tier")
	recordType, _ := cmd.Flags().GetString("type")
	minSalience, _ := cmd.Flags().GetFloat64("min-salience")
	limit, _ := cmd.Flags().GetInt("limit")
	noResolve, _ := cmd.Flags().GetBool("no-resolve")
	query := strings.Join(args, " ")

	s, _, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	results, err := s.Search(cmd.Context(), store.SearchParams{
		Query:       query,
		Tier:        model.Tier(tier),
		Type:        recordType,
		MinSalience: minSalience,
		Limit:       limit,
		NoResolve:   noResolve,
	})
	if err != nil {
		exitErr("recall", err)
	}

	if len(results) == 0 {
		fmt.Println("[]")
		return
	}

	b, _ := json.MarshalIndent(results, "", "  ")
	fmt.Println(string(b))
}
