package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-sorter/internal/facematch"
)

var peopleCmd = &cobra.Command{
	Use:   "people",
	Short: "List and manage enrolled people",
	Args:  cobra.NoArgs,
	RunE:  runPeopleList,
}

var peopleDeleteCmd = &cobra.Command{
	Use:   "delete <person-name>",
	Short: "Remove a person from the reference database",
	Args:  cobra.ExactArgs(1),
	RunE:  runPeopleDelete,
}

func init() {
	rootCmd.AddCommand(peopleCmd)
	peopleCmd.AddCommand(peopleDeleteCmd)

	peopleCmd.Flags().Bool("json", false, "Output as JSON")
}

func runPeopleList(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	jsonOutput := mustGetBool(cmd, "json")

	ctx := cmd.Context()
	store, err := openStorage(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.close()

	people, err := store.refs.ListPeople(ctx)
	if err != nil && !errors.Is(err, facematch.ErrDatabaseNotFound) {
		return fmt.Errorf("failed to list people: %w", err)
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(people)
	}

	if len(people) == 0 {
		fmt.Println("No people enrolled.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tREFERENCES\tDIM\tUPDATED")
	for _, p := range people {
		updated := "-"
		if !p.UpdatedAt.IsZero() {
			updated = humanize.Time(p.UpdatedAt)
		}
		fmt.Fprintf(w, "%s\t%d\t%d\t%s\n", p.Name, p.References, p.Dim, updated)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Printf("\n%d people enrolled in %s\n", len(people), store.name)
	return nil
}

func runPeopleDelete(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	store, err := openStorage(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.close()

	if err := store.refs.DeletePerson(ctx, args[0]); err != nil {
		return fmt.Errorf("failed to delete %s: %w", args[0], err)
	}
	fmt.Printf("Deleted %s\n", args[0])
	return nil
}
