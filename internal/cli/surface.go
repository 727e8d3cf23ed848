package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/g1itchbot8888-del/agent-memory/internal/surface"
)

func init() {
	cmd := &cobra.Command{
		Use:   "surface [context text]",
		Short: "Predict relevant memories for a context",
		Long:  "Surface records relevant to a block of context text without an explicit query. Entity mentions, semantic similarity, and temporal cues each contribute candidates.",
		Args:  cobra.MinimumNArgs(1),
		Run:   runSurface,
	}

	cmd.Flags().IntP("limit", "l", 5, "Max records to surface")
	cmd.Flags().Bool("markdown", false, "Render as a markdown block instead of JSON")

	RootCmd.AddCommand(cmd)
}

func runSurface(cmd *cobra.Command, args []string) {
	limit, _ := cmd.Flags().GetInt("limit")
	markdown, _ := cmd.Flags().GetBool("markdown")
	text := strings.Join(args, " ")

	s, cfg, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	surfacer := surface.New(s, cfg, newLogger())
	results, err := surfacer.Predict(cmd.Context(), text, limit)
	if err != nil {
		exitErr("surface", err)
	}

	if markdown {
		fmt.Print(surface.Format(results))
		return
	}
	if len(results) == 0 {
		fmt.Println("[]")
		return
	}
	b, _ := json.MarshalIndent(results, "", "  ")
	fmt.Println(string(b))
}
