package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func init() {
	exportCmd := &cobra.Command{
		Use:   "export",
		Short: "Export the store as JSON",
		Long:  "Write the full store contents, embeddings included, as JSON to stdout or a file.",
		Run:   runExport,
	}
	exportCmd.Flags().StringP("out", "o", "", "Output file (default: stdout)")

	importCmd := &cobra.Command{
		Use:   "import [file]",
		Short: "Import a JSON snapshot",
		Long:  "Load a snapshot produced by export. Rows with matching ids are replaced.",
		Args:  cobra.ExactArgs(1),
		Run:   runImport,
	}

	RootCmd.AddCommand(exportCmd, importCmd)
}

func runExport(cmd *cobra.Command, args []string) {
	out, _ := cmd.Flags().GetString("out")

	s, _, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	w := os.Stdout
	if out != "" {
		f, err := os.Create(out)
		if err != nil {
			exitErr("export", err)
		}
		defer f.Close()
		w = f
	}

	if err := s.Export(cmd.Context(), w); err != nil {
		exitErr("export", err)
	}
}

func runImport(cmd *cobra.Command, args []string) {
	f, err := os.Open(args[0])
	if err != nil {
		exitErr("import", err)
	}
	defer f.Close()

	s, _, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	n, err := s.Import(cmd.Context(), f)
	if err != nil {
		exitErr("import", err)
	}
	fmt.Printf("imported %d records\n", n)
}
