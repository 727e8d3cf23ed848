package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/g1itchbot8888-del/agent-memory/internal/extract"
	"github.com/g1itchbot8888-del/agent-memory/internal/model"
	"github.com/g1itchbot8888-del/agent-memory/internal/store"
)

func init() {
	cmd := &cobra.Command{
		Use:   "capture [content]",
		Short: "Store a memory record",
		Long:  "Store a memory record. Content can be a positional arg or piped via stdin. With --auto, heuristics extract multiple records from the text and tier them.",
		Run:   runCapture,
	}

	cmd.Flags().String("tier", "", "Tier: identity, active, archive (default: classified from content)")
	cmd.Flags().StringP("type", "t", model.TypeFact, "Record type")
	cmd.Flags().Float64P("salience", "s", 0, "Salience 0-1 (default: estimated)")
	cmd.Flags().String("meta", "", "JSON metadata")
	cmd.Flags().Bool("auto", false, "Extract memory candidates from the text instead of storing it verbatim")

	RootCmd.AddCommand(cmd)
}

func runCapture(cmd *cobra.Command, args []string) {
	tier, _ := cmd.Flags().GetString("tier")
	recordType, _ := cmd.Flags().GetString("type")
	salience, _ := cmd.Flags().GetFloat64("salience")
	metaStr, _ := cmd.Flags().GetString("meta")
	auto, _ := cmd.Flags().GetBool("auto")

	// Content: positional arg first, then stdin
	var content string
	if len(args) > 0 {
		content = strings.Join(args, " ")
	} else {
		stat, _ := os.Stdin.Stat()
		if (stat.Mode() & os.ModeCharDevice) == 0 {
			b, err := io.ReadAll(os.Stdin)
			if err != nil {
				exitErr("read stdin", err)
			}
			content = string(b)
		}
	}
	if strings.TrimSpace(content) == "" {
		exitErr("capture", fmt.Errorf("content is required (positional arg or stdin)"))
	}

	var meta map[string]any
	if metaStr != "" {
		if err := json.Unmarshal([]byte(metaStr), &meta); err != nil {
			exitErr("parse --meta", err)
		}
	}

	s, _, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	if auto {
		runAutoCapture(cmd, s, content)
		return
	}

	content = strings.TrimSpace(content)
	if tier == "" {
		tier = string(extract.ClassifyTier(content, recordType))
	}
	if salience == 0 {
		salience = extract.EstimateSalience(content, recordType, model.DefaultSalience(recordType))
	}

	rec, err := s.Put(cmd.Context(), store.PutParams{
		Content:  content,
		Tier:     model.Tier(tier),
		Type:     recordType,
		Salience: salience,
		Metadata: meta,
	})
	if err != nil {
		exitErr("capture", err)
	}

	b, _ := json.MarshalIndent(rec, "", "  ")
	fmt.Println(string(b))
}

func runAutoCapture(cmd *cobra.Command, s *store.Store, content string) {
	extractor := extract.NewHeuristicExtractor()
	candidates := extractor.Extract(content, 0.3)
	if len(candidates) == 0 {
		fmt.Println("[]")
		return
	}

	var stored []*model.Record
	for _, c := range candidates {
		salience := extract.EstimateSalience(c.Content, c.Type, c.Salience)
		rec, err := s.Put(cmd.Context(), store.PutParams{
			Content:  c.Content,
			Tier:     extract.ClassifyTier(c.Content, c.Type),
			Type:     c.Type,
			Salience: salience,
			Metadata: map[string]any{"extracted": true, "confidence": c.Confidence},
		})
		if err != nil {
			exitErr("capture", err)
		}
		stored = append(stored, rec)
	}

	b, _ := json.MarshalIndent(stored, "", "  ")
	fmt.Println(string(b))
}
