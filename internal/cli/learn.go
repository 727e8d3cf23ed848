package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "learn [kind] [lesson]",
		Short: "Record a retrieval learning",
		Long:  "Record an interaction outcome (recall_hit, recall_miss, correction, insight, error) so later surfacing can be biased by it.",
		Args:  cobra.MinimumNArgs(2),
		Run:   runLearn,
	}

	cmd.Flags().String("trigger", "", "What prompted the learning")
	cmd.Flags().String("context", "", "Surrounding context at the time")
	cmd.Flags().String("record", "", "Id of the record the learning is about")

	relevantCmd := &cobra.Command{
		Use:   "learnings [text]",
		Short: "List learnings relevant to a text",
		Args:  cobra.MinimumNArgs(1),
		Run:   runLearnings,
	}
	relevantCmd.Flags().String("kind", "", "Filter by learning kind")
	relevantCmd.Flags().IntP("limit", "l", 5, "Max results")

	RootCmd.AddCommand(cmd, relevantCmd)
}

func runLearn(cmd *cobra.Command, args []string) {
	trigger, _ := cmd.Flags().GetString("trigger")
	contextText, _ := cmd.Flags().GetString("context")
	recordID, _ := cmd.Flags().GetString("record")
	kind := args[0]
	lesson := strings.Join(args[1:], " ")

	s, _, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	var meta map[string]any
	if recordID != "" {
		meta = map[string]any{"record_id": recordID}
	}

	rec, err := s.AddLearning(cmd.Context(), kind, trigger, lesson, contextText, meta)
	if err != nil {
		exitErr("learn", err)
	}

	b, _ := json.MarshalIndent(rec, "", "  ")
	fmt.Println(string(b))
}

func runLearnings(cmd *cobra.Command, args []string) {
	kind, _ := cmd.Flags().GetString("kind")
	limit, _ := cmd.Flags().GetInt("limit")
	text := strings.Join(args, " ")

	s, _, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	learnings, err := s.RelevantLearnings(cmd.Context(), text, kind, limit)
	if err != nil {
		exitErr("learnings", err)
	}

	if len(learnings) == 0 {
		fmt.Println("[]")
		return
	}
	b, _ := json.MarshalIndent(learnings, "", "  ")
	fmt.Println(string(b))
}
