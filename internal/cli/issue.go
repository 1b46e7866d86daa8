package cli

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/KeaPin/kami/internal/app/redeem"
	"github.com/KeaPin/kami/internal/domain"
	"github.com/KeaPin/kami/internal/infra/observability"
)

func init() {
	rootCmd.AddCommand(issueCmd)
	rootCmd.AddCommand(cardsCmd)

	issueCmd.Flags().IntP("count", "n", 1, "Number of cards to issue (1-100)")
	issueCmd.Flags().StringSliceP("resource", "r", nil, "Resource id to bind (repeatable)")
	issueCmd.Flags().Int("max-uses", 1, "Uses per card, -1 for unlimited")
	issueCmd.Flags().Int("expire-days", 0, "Days until expiry, 0 for no expiry")
	issueCmd.Flags().String("note", "", "Free-form note stored with the cards")

	cardsCmd.Flags().String("status", "", "Filter by status: active, used, disabled")
	cardsCmd.Flags().String("keyword", "", "Filter by code or note substring")
}

// ─── kami issue ─────────────────────────────────────────────────────────────

var issueCmd = &cobra.Command{
	Use:   "issue",
	Short: "Issue a batch of card keys",
	Long: `Issue one or more card keys bound to existing resources.
The generated codes are printed to stdout, one per line.`,
	RunE: runIssue,
}

func runIssue(cmd *cobra.Command, args []string) error {
	count, _ := cmd.Flags().GetInt("count")
	resources, _ := cmd.Flags().GetStringSlice("resource")
	maxUses, _ := cmd.Flags().GetInt("max-uses")
	expireDays, _ := cmd.Flags().GetInt("expire-days")
	note, _ := cmd.Flags().GetString("note")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	db, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	var expiresAt *time.Time
	if expireDays > 0 {
		t := time.Now().AddDate(0, 0, expireDays)
		expiresAt = &t
	}

	issuer := redeem.NewIssuer(db, observability.New())
	result, err := issuer.IssueBatch(cmd.Context(), redeem.IssueParams{
		Count:       count,
		MaxUses:     maxUses,
		ExpiresAt:   expiresAt,
		Note:        note,
		ResourceIDs: resources,
	})
	if err != nil {
		// Partial batches are still reported before the error.
		if result != nil {
			for _, card := range result.Cards {
				fmt.Println(card.Code)
			}
		}
		return err
	}

	for _, card := range result.Cards {
		fmt.Println(card.Code)
	}
	return nil
}

// ─── kami cards ─────────────────────────────────────────────────────────────

var cardsCmd = &cobra.Command{
	Use:   "cards",
	Short: "List issued cards",
	RunE:  runCards,
}

func runCards(cmd *cobra.Command, args []string) error {
	statusFlag, _ := cmd.Flags().GetString("status")
	keyword, _ := cmd.Flags().GetString("keyword")

	status := domain.CardStatus(statusFlag)
	switch status {
	case "", domain.CardActive, domain.CardUsed, domain.CardDisabled:
	default:
		return fmt.Errorf("unknown status %q", statusFlag)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	db, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	cards, err := db.ListCards(cmd.Context(), keyword, status)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "CODE\tSTATUS\tUSES\tRESOURCES\tNOTE")
	for _, c := range cards {
		uses := fmt.Sprintf("%d/%d", c.CurrentUses, c.MaxUses)
		if c.MaxUses == domain.UnlimitedUses {
			uses = fmt.Sprintf("%d/∞", c.CurrentUses)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n", c.Code, c.Status, uses, c.ResourceCount, c.Note)
	}
	return w.Flush()
}
