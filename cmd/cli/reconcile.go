package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/dvloznov/shopkeeper/internal/domain"
	"github.com/dvloznov/shopkeeper/internal/session"
	"github.com/dvloznov/shopkeeper/internal/shop"
)

const rupee = "₹"

func reconcileCmd() *cobra.Command {
	var (
		audioPath string
		mimeType  string
		sets      []string
		toggles   []string
		adds      []string
		explain   bool
		confirm   bool
	)

	cmd := &cobra.Command{
		Use:   "reconcile [amount]",
		Short: "Open a reconciliation session for a payment",
		Long: `Open a session for a typed-in amount, or for a soundbox recording with
--audio, apply the requested edits in order (--add, --set, --toggle) and
print the resulting basket. Without --confirm the session is cancelled
and nothing is recorded.`,
		Example: `  shopkeeper reconcile 40
  shopkeeper reconcile 40 --set tea=2 --toggle biscuit --confirm
  shopkeeper reconcile --audio payment.wav --confirm`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if (audioPath == "") == (len(args) == 0) {
				return fmt.Errorf("give either an amount or --audio")
			}
			edits, err := parseSets(sets)
			if err != nil {
				return err
			}

			return withApp(cmd, func(ctx context.Context, e *env) error {
				s := e.app.Shop
				out := cmd.OutOrStdout()

				res, err := openSession(ctx, s, args, audioPath, mimeType)
				if err != nil {
					return err
				}
				id := res.Session.ID
				fmt.Fprintf(out, "Transcription: %s\n", res.Transcription.Text)

				view := res.Session
				if len(adds) > 0 {
					if view, err = s.AddCandidateLines(ctx, id, adds); err != nil {
						return cancelAfter(ctx, s, id, err)
					}
				}
				for _, ed := range edits {
					if view, err = s.SetQuantity(ctx, id, ed.productID, ed.quantity); err != nil {
						return cancelAfter(ctx, s, id, err)
					}
					if view.Rejected {
						fmt.Fprintf(out, "Rejected: %s x%d would exceed %s%s\n", ed.productID, ed.quantity, rupee, view.TargetAmount)
					}
				}
				for _, pid := range toggles {
					if view, err = s.ToggleSelection(ctx, id, pid); err != nil {
						return cancelAfter(ctx, s, id, err)
					}
					if view.Rejected {
						fmt.Fprintf(out, "Rejected: selecting %s would exceed %s%s\n", pid, rupee, view.TargetAmount)
					}
				}

				printView(out, view)
				if explain && view.MiscAmount.IsPositive() {
					suggestions, err := s.ExplainMiscellaneous(id)
					if err != nil {
						return cancelAfter(ctx, s, id, err)
					}
					printMisc(out, suggestions)
				}

				if !confirm {
					if err := s.Cancel(ctx, id); err != nil {
						return err
					}
					fmt.Fprintln(out, "Not confirmed, session discarded.")
					return nil
				}
				tx, err := s.Confirm(ctx, id)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Recorded transaction %s for %s%s\n", tx.ID, rupee, tx.Amount)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&audioPath, "audio", "", "Soundbox recording to transcribe instead of a typed amount")
	cmd.Flags().StringVar(&mimeType, "mime", "audio/wav", "MIME type of the --audio file")
	cmd.Flags().StringArrayVar(&sets, "set", nil, "Set a line quantity, as product_id=quantity (repeatable)")
	cmd.Flags().StringArrayVar(&toggles, "toggle", nil, "Toggle selection of a line (repeatable)")
	cmd.Flags().StringSliceVar(&adds, "add", nil, "Add catalog products as unselected lines")
	cmd.Flags().BoolVar(&explain, "explain", false, "Suggest how the miscellaneous amount could be spent")
	cmd.Flags().BoolVar(&confirm, "confirm", false, "Record the sale")
	return cmd
}

func transcribeCmd() *cobra.Command {
	var mimeType string

	cmd := &cobra.Command{
		Use:   "transcribe <file>",
		Short: "Transcribe a soundbox recording and show the suggested baskets",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			audio, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read audio: %w", err)
			}
			return withApp(cmd, func(ctx context.Context, e *env) error {
				res, err := e.app.Shop.OpenFromAudio(ctx, audio, mimeType)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				tr := res.Transcription
				fmt.Fprintf(out, "Amount:   %s%s\n", rupee, tr.Amount)
				fmt.Fprintf(out, "Text:     %s\n", tr.Text)
				fmt.Fprintf(out, "Language: %s\n", tr.Language)
				if tr.PayerInfo != nil {
					fmt.Fprintf(out, "Payer:    %s\n", *tr.PayerInfo)
				}
				printCandidates(out, res.Candidates)
				return e.app.Shop.Cancel(ctx, res.Session.ID)
			})
		},
	}
	cmd.Flags().StringVar(&mimeType, "mime", "audio/wav", "MIME type of the recording")
	return cmd
}

func openSession(ctx context.Context, s *shop.Shop, args []string, audioPath, mimeType string) (shop.CaptureResult, error) {
	if audioPath != "" {
		audio, err := os.ReadFile(audioPath)
		if err != nil {
			return shop.CaptureResult{}, fmt.Errorf("read audio: %w", err)
		}
		return s.OpenFromAudio(ctx, audio, mimeType)
	}
	amount, err := decimal.NewFromString(args[0])
	if err != nil {
		return shop.CaptureResult{}, fmt.Errorf("%w: amount %q", domain.ErrInvalidAmount, args[0])
	}
	return s.OpenManual(ctx, amount)
}

func cancelAfter(ctx context.Context, s *shop.Shop, id string, err error) error {
	_ = s.Cancel(ctx, id)
	return err
}

type quantityEdit struct {
	productID string
	quantity  int
}

func parseSets(values []string) ([]quantityEdit, error) {
	edits := make([]quantityEdit, 0, len(values))
	for _, v := range values {
		pid, qty, ok := strings.Cut(v, "=")
		if !ok || pid == "" {
			return nil, fmt.Errorf("%w: --set %q, want product_id=quantity", domain.ErrInput, v)
		}
		n, err := strconv.Atoi(qty)
		if err != nil {
			return nil, fmt.Errorf("%w: --set %q: %v", domain.ErrInput, v, err)
		}
		edits = append(edits, quantityEdit{productID: pid, quantity: n})
	}
	return edits, nil
}

func printView(out io.Writer, v session.View) {
	fmt.Fprintf(out, "Session %s (%s), target %s%s\n", v.ID, v.State, rupee, v.TargetAmount)
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "\tPRODUCT\tNAME\tPRICE\tQTY\tTOTAL")
	for _, l := range v.Lines {
		mark := " "
		if l.Selected {
			mark = "x"
		}
		fmt.Fprintf(tw, "[%s]\t%s\t%s\t%s\t%d\t%s\n", mark, l.ProductID, l.Name, l.UnitPrice, l.Quantity, l.Total())
	}
	_ = tw.Flush()
	fmt.Fprintf(out, "Selected %s%s, miscellaneous %s%s\n", rupee, v.SelectedTotal, rupee, v.MiscAmount)
}

func printMisc(out io.Writer, suggestions []session.MiscSuggestion) {
	if len(suggestions) == 0 {
		fmt.Fprintln(out, "Nothing in the catalog fits the miscellaneous amount.")
		return
	}
	fmt.Fprintln(out, "The miscellaneous amount could be:")
	for _, m := range suggestions {
		fmt.Fprintf(out, "  %d more %s (%s%s)\n", m.ExtraQuantity, m.Name, rupee, m.ExtraValue)
	}
}

func printCandidates(out io.Writer, sets []domain.CandidateSet) {
	if len(sets) == 0 {
		fmt.Fprintln(out, "No basket matches the amount.")
		return
	}
	for i, set := range sets {
		parts := make([]string, 0, len(set.Items))
		for _, it := range set.Items {
			parts = append(parts, fmt.Sprintf("%d x %s", it.Quantity, it.Product.Name))
		}
		fmt.Fprintf(out, "%d. %s = %s%s (confidence %.2f)\n", i+1, strings.Join(parts, " + "), rupee, set.Total(), set.MeanConfidence())
	}
}
