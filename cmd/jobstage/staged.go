package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/jonathan/jobstage/internal/posting"
)

var (
	stagedJSON     bool
	importCategory string
)

var stagedCmd = &cobra.Command{
	Use:   "staged",
	Short: "Review staged postings",
}

var stagedListCmd = &cobra.Command{
	Use:   "list",
	Short: "List staged postings, newest first",
	Args:  cobra.NoArgs,
	RunE:  runStagedList,
}

var stagedImportCmd = &cobra.Command{
	Use:   "import <id>",
	Short: "Promote a staged posting into the live jobs table",
	Args:  cobra.ExactArgs(1),
	RunE:  runStagedImport,
}

var stagedRejectCmd = &cobra.Command{
	Use:   "reject <id>",
	Short: "Delete a staged posting",
	Args:  cobra.ExactArgs(1),
	RunE:  runStagedReject,
}

func init() {
	stagedListCmd.Flags().BoolVar(&stagedJSON, "json", false, "Print postings as JSON")
	stagedImportCmd.Flags().StringVar(&importCategory, "category", "", "Override the posting's category")

	stagedCmd.AddCommand(stagedListCmd, stagedImportCmd, stagedRejectCmd)
	rootCmd.AddCommand(stagedCmd)
}

func runStagedList(cmd *cobra.Command, _ []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	staged, err := a.moderation().List(cmd.Context())
	if err != nil {
		return err
	}
	if stagedJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(staged)
	}
	writeStagedTable(cmd.OutOrStdout(), staged)
	return nil
}

func runStagedImport(cmd *cobra.Command, args []string) error {
	id, err := uuid.Parse(args[0])
	if err != nil {
		return fmt.Errorf("invalid staged posting id %q: %w", args[0], err)
	}
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	job, err := a.moderation().Import(cmd.Context(), id, importCategory)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "imported %q at %s as job %s\n", job.Title, job.Company, job.ID)
	return nil
}

func runStagedReject(cmd *cobra.Command, args []string) error {
	id, err := uuid.Parse(args[0])
	if err != nil {
		return fmt.Errorf("invalid staged posting id %q: %w", args[0], err)
	}
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.moderation().Reject(cmd.Context(), id); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "rejected %s\n", id)
	return nil
}

// openApp wires the app from configuration alone.
func openApp(cmd *cobra.Command) (*app, error) {
	cfg, err := loadConfig("")
	if err != nil {
		return nil, err
	}
	return newApp(cmd.Context(), cfg)
}

func writeStagedTable(w io.Writer, staged []posting.Staged) {
	if len(staged) == 0 {
		fmt.Fprintln(w, "no staged postings")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSOURCE\tTITLE\tCOMPANY\tLEVEL\tEXPIRES")
	for _, s := range staged {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			s.ID, s.Source, s.Title, s.Company, s.Level, s.ExpiresAt.Format("2006-01-02"))
	}
	_ = tw.Flush()
}
