package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/dvloznov/shopkeeper/internal/catalog"
	"github.com/dvloznov/shopkeeper/internal/domain"
)

const dateLayout = "2006-01-02"

func productsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "products",
		Short: "List and edit catalog products",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List products in catalog order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(_ context.Context, e *env) error {
				printProducts(cmd.OutOrStdout(), e.app.Shop.Products())
				return nil
			})
		},
	}

	var (
		id, name, price, image string
		stock, threshold       int
	)
	add := &cobra.Command{
		Use:   "add",
		Short: "Add a product",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := parsePrice(price)
			if err != nil {
				return err
			}
			return withApp(cmd, func(ctx context.Context, e *env) error {
				added, err := e.app.Shop.AddProduct(ctx, domain.Product{
					ID:               id,
					Name:             name,
					UnitPrice:        p,
					ImageRef:         image,
					InitialStock:     stock,
					ReorderThreshold: threshold,
				})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Added %s (%s) at %s%s\n", added.Name, added.ID, rupee, added.UnitPrice)
				return nil
			})
		},
	}
	add.Flags().StringVar(&id, "id", "", "Product ID (generated when empty)")
	add.Flags().StringVar(&name, "name", "", "Product name")
	add.Flags().StringVar(&price, "price", "", "Unit price")
	add.Flags().StringVar(&image, "image", "", "Image reference")
	add.Flags().IntVar(&stock, "stock", 0, "Initial stock")
	add.Flags().IntVar(&threshold, "threshold", domain.DefaultReorderThreshold, "Reorder threshold")
	_ = add.MarkFlagRequired("name")
	_ = add.MarkFlagRequired("price")

	var newName, newPrice string
	update := &cobra.Command{
		Use:   "update <id>",
		Short: "Rename or reprice a product",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := parsePrice(newPrice)
			if err != nil {
				return err
			}
			return withApp(cmd, func(ctx context.Context, e *env) error {
				updated, err := e.app.Shop.UpdateProduct(ctx, args[0], newName, p)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Updated %s: %s at %s%s\n", updated.ID, updated.Name, rupee, updated.UnitPrice)
				return nil
			})
		},
	}
	update.Flags().StringVar(&newName, "name", "", "New name")
	update.Flags().StringVar(&newPrice, "price", "", "New unit price")
	_ = update.MarkFlagRequired("name")
	_ = update.MarkFlagRequired("price")

	remove := &cobra.Command{
		Use:   "remove <id>",
		Short: "Remove a product; past sales keep their snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, e *env) error {
				if err := e.app.Shop.RemoveProduct(ctx, args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", args[0])
				return nil
			})
		},
	}

	cmd.AddCommand(list, add, update, remove)
	return cmd
}

func inventoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inventory",
		Short: "Show and correct stock levels",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List stock per product",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(_ context.Context, e *env) error {
				printStock(cmd.OutOrStdout(), e.app.Shop.Inventory())
				return nil
			})
		},
	}

	var (
		stock, threshold int
		expiry           string
	)
	set := &cobra.Command{
		Use:   "set <product-id>",
		Short: "Set the stock, reorder threshold and expiry date of a product",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, e *env) error {
				var exp *time.Time
				if expiry != "" {
					t, err := time.ParseInLocation(dateLayout, expiry, e.app.Shop.Location())
					if err != nil {
						return fmt.Errorf("%w: expiry %q, want YYYY-MM-DD", domain.ErrInput, expiry)
					}
					exp = &t
				}
				it, err := e.app.Shop.UpdateStock(ctx, args[0], stock, threshold, exp)
				if err != nil {
					return err
				}
				printStock(cmd.OutOrStdout(), []domain.StockItem{it})
				return nil
			})
		},
	}
	set.Flags().IntVar(&stock, "stock", 0, "Units on hand")
	set.Flags().IntVar(&threshold, "threshold", domain.DefaultReorderThreshold, "Reorder threshold")
	set.Flags().StringVar(&expiry, "expiry", "", "Expiry date (YYYY-MM-DD)")
	_ = set.MarkFlagRequired("stock")

	cmd.AddCommand(list, set)
	return cmd
}

func importCatalogCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import-catalog <file.yaml>",
		Short: "Add every product listed in a YAML catalog file",
		Long: `Read a YAML file of the form

  products:
    - id: tea
      name: Tea
      price: "10"
      stock: 20
      reorder_threshold: 5

and add each entry to the catalog. The file is validated as a whole
before anything is added. Entries whose ID already exists are reported
and skipped.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("open catalog file: %w", err)
			}
			defer f.Close()

			products, err := catalog.ParseYAML(f)
			if err != nil {
				return err
			}

			return withApp(cmd, func(ctx context.Context, e *env) error {
				out := cmd.OutOrStdout()
				var errs []error
				added := 0
				for _, p := range products {
					if _, err := e.app.Shop.AddProduct(ctx, p); err != nil {
						errs = append(errs, fmt.Errorf("%s: %w", p.Name, err))
						continue
					}
					added++
				}
				fmt.Fprintf(out, "Imported %d of %d products\n", added, len(products))
				return errors.Join(errs...)
			})
		},
	}
}

func parsePrice(s string) (decimal.Decimal, error) {
	p, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("%w: price %q", domain.ErrInvalidPrice, s)
	}
	return p, nil
}

func printProducts(out io.Writer, products []domain.Product) {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tPRICE")
	for _, p := range products {
		fmt.Fprintf(tw, "%s\t%s\t%s%s\n", p.ID, p.Name, rupee, p.UnitPrice)
	}
	_ = tw.Flush()
}

func printStock(out io.Writer, items []domain.StockItem) {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tSTOCK\tREORDER AT\tEXPIRES")
	for _, it := range items {
		expires := "-"
		if it.ExpiryDate != nil {
			expires = it.ExpiryDate.Format(dateLayout)
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s\n", it.ProductID, it.Name, it.Quantity, it.ReorderThreshold, expires)
	}
	_ = tw.Flush()
}
