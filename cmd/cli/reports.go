package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/dvloznov/shopkeeper/internal/domain"
	"github.com/dvloznov/shopkeeper/internal/export"
	"github.com/dvloznov/shopkeeper/internal/sales"
)

func dashboardCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dashboard",
		Short: "Show today's takings, the top product and stock alerts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(_ context.Context, e *env) error {
				printDashboard(cmd.OutOrStdout(), e.app.Shop.Profile(), e.app.Shop.Dashboard())
				return nil
			})
		},
	}
}

func transactionsCmd() *cobra.Command {
	var date, typ string

	cmd := &cobra.Command{
		Use:     "transactions",
		Aliases: []string{"history"},
		Short:   "List recorded sales, newest first",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(_ context.Context, e *env) error {
				f, err := parseFilters(date, typ, e.app.Shop.Location())
				if err != nil {
					return err
				}
				txs := e.app.Shop.Transactions(f)
				printTransactions(cmd.OutOrStdout(), txs, e.app.Shop.Location())
				totals := export.Summarize(txs)
				fmt.Fprintf(cmd.OutOrStdout(), "%d sales, UPI %s%s, cash %s%s, total %s%s\n",
					len(txs), rupee, totals.UPI, rupee, totals.Cash, rupee, totals.All)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "Only this day (YYYY-MM-DD)")
	cmd.Flags().StringVar(&typ, "type", export.TypeAll, "Payment type: all, upi or cash")
	return cmd
}

func exportCmd() *cobra.Command {
	var date, typ, outPath string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write sales as CSV",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(_ context.Context, e *env) error {
				f, err := parseFilters(date, typ, e.app.Shop.Location())
				if err != nil {
					return err
				}
				var w io.Writer = cmd.OutOrStdout()
				if outPath != "" {
					file, err := os.Create(outPath)
					if err != nil {
						return fmt.Errorf("create %s: %w", outPath, err)
					}
					defer file.Close()
					w = file
				}
				return e.app.Shop.Export(w, f)
			})
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "Only this day (YYYY-MM-DD)")
	cmd.Flags().StringVar(&typ, "type", export.TypeAll, "Payment type: all, upi or cash")
	cmd.Flags().StringVarP(&outPath, "output", "o", "", "Write to this file instead of stdout")
	return cmd
}

func parseFilters(date, typ string, loc *time.Location) (export.Filters, error) {
	t, err := export.ParseType(typ)
	if err != nil {
		return export.Filters{}, err
	}
	f := export.Filters{Type: t, Location: loc}
	if date != "" {
		d, err := time.ParseInLocation(dateLayout, date, loc)
		if err != nil {
			return export.Filters{}, fmt.Errorf("%w: date %q, want YYYY-MM-DD", domain.ErrInput, date)
		}
		f.Date = d
	}
	return f, nil
}

func printDashboard(out io.Writer, profile domain.ShopProfile, d sales.Dashboard) {
	if profile.Name != "" {
		fmt.Fprintf(out, "%s\n\n", profile.Name)
	}
	top := d.TopProduct
	if top == "" {
		top = "-"
	}
	fmt.Fprintf(out, "Today:        %s%s\n", rupee, d.TodayTotal)
	fmt.Fprintf(out, "Top product:  %s\n", top)
	fmt.Fprintf(out, "Sales so far: %d\n", d.Transactions)

	fmt.Fprintln(out, "\nRevenue")
	for _, day := range d.Revenue {
		fmt.Fprintf(out, "  %s  %s%s\n", day.Date.Format(dateLayout), rupee, day.Revenue)
	}

	printAlert(out, "Low stock", d.LowStock)
	printAlert(out, "Expiring soon", d.Expiring)
	printAlert(out, "Expired", d.Expired)
}

func printAlert(out io.Writer, title string, items []domain.StockItem) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(out, "\n%s\n", title)
	printStock(out, items)
}

func printTransactions(out io.Writer, txs []domain.Transaction, loc *time.Location) {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTIME\tAMOUNT\tTYPE\tPRODUCTS\tMISC")
	for _, tx := range txs {
		products := export.ProductList(tx)
		if products == "" {
			products = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s%s\t%s\t%s\t%s%s\n",
			shortID(tx.ID), tx.Timestamp.In(loc).Format("2006-01-02 15:04"), rupee, tx.Amount,
			tx.SourceMethod.PaymentType(), products, rupee, tx.MiscAmount)
	}
	_ = tw.Flush()
}

func shortID(id string) string {
	if i := strings.IndexByte(id, '-'); i > 0 {
		return id[:i]
	}
	return id
}
