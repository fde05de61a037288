package notionsync

import (
	"fmt"
	"strings"
	"time"

	"github.com/jomei/notionapi"

	infraBQ "github.com/dvloznov/shopkeeper/internal/infra/bigquery"
)

// Notion property names of the Sales database.
const (
	PropSale          = "Sale"
	PropSaleID        = "Sale ID"
	PropDate          = "Date"
	PropAmount        = "Amount"
	PropMisc          = "Misc Amount"
	PropCurrency      = "Currency"
	PropType          = "Type"
	PropMethod        = "Method"
	PropProducts      = "Products"
	PropTranscription = "Transcription"
)

// SaleToNotionProperties converts a SaleRow to Notion page properties.
func SaleToNotionProperties(sale *infraBQ.SaleRow) notionapi.Properties {
	currency := sale.Currency
	if currency == "" {
		currency = "INR"
	}
	props := notionapi.Properties{
		PropSale: notionapi.TitleProperty{
			Title: richText(saleTitle(sale)),
		},
		PropSaleID: notionapi.RichTextProperty{
			RichText: richText(sale.SaleID),
		},
		PropDate: notionapi.DateProperty{
			Date: &notionapi.DateObject{
				Start: func() *notionapi.Date {
					d := notionapi.Date(time.Date(
						sale.SaleDate.Year,
						sale.SaleDate.Month,
						sale.SaleDate.Day,
						0, 0, 0, 0, time.UTC,
					))
					return &d
				}(),
			},
		},
		PropAmount: notionapi.NumberProperty{
			Number: infraBQ.Float64(sale.Amount),
		},
		PropCurrency: notionapi.SelectProperty{
			Select: notionapi.Option{Name: currency},
		},
	}

	if misc := infraBQ.Float64(sale.MiscAmount); misc != 0 {
		props[PropMisc] = notionapi.NumberProperty{Number: misc}
	}
	if sale.PaymentType != "" {
		props[PropType] = notionapi.SelectProperty{
			Select: notionapi.Option{Name: sale.PaymentType},
		}
	}
	if sale.SourceMethod != "" {
		props[PropMethod] = notionapi.SelectProperty{
			Select: notionapi.Option{Name: sale.SourceMethod},
		}
	}
	if len(sale.Lines) > 0 {
		props[PropProducts] = notionapi.RichTextProperty{
			RichText: richText(productList(sale)),
		}
	}
	if sale.Transcription.Valid {
		props[PropTranscription] = notionapi.RichTextProperty{
			RichText: richText(sale.Transcription.StringVal),
		}
	}
	return props
}

func saleTitle(sale *infraBQ.SaleRow) string {
	return fmt.Sprintf("₹%s %s", sale.Amount.FloatString(2), sale.SaleTS.Format("2006-01-02 15:04"))
}

func productList(sale *infraBQ.SaleRow) string {
	parts := make([]string, 0, len(sale.Lines))
	for _, l := range sale.Lines {
		parts = append(parts, fmt.Sprintf("%dx %s", l.Quantity, l.Name))
	}
	return strings.Join(parts, "; ")
}

func richText(content string) []notionapi.RichText {
	return []notionapi.RichText{
		{
			Type: notionapi.ObjectTypeText,
			Text: &notionapi.Text{Content: content},
		},
	}
}

// extractSaleID reads the Sale ID property from an existing page.
func extractSaleID(page notionapi.Page) string {
	if prop, ok := page.Properties[PropSaleID]; ok {
		if rt, ok := prop.(*notionapi.RichTextProperty); ok && len(rt.RichText) > 0 {
			return rt.RichText[0].PlainText
		}
	}
	return ""
}
