package pipeline

import (
	"fmt"
	"strings"
	"time"

	"pixwebhook/internal/notify"
)

func clientCreatedEvent(res *Result, at time.Time) notify.Event {
	var b strings.Builder
	fmt.Fprintf(&b, "A Pix payment arrived from a payer with no billing account on file.\n\n")
	writePayment(&b, res)
	fmt.Fprintf(&b, "\nAdd the billing account id to the client store:\n  %s|ACCOUNT_ID\n", res.Client.Name)
	fmt.Fprintf(&b, "or run: pixwebhook clients set-id %q ACCOUNT_ID\n", res.Client.Name)

	return notify.Event{
		Kind:    notify.KindClientCreated,
		Subject: "New Pix client: " + res.Client.Name,
		Body:    b.String(),
		Client:  res.Client.Name,
		RunID:   res.RunID,
		At:      at,
	}
}

func clientUpdatedEvent(res *Result, at time.Time) notify.Event {
	var b strings.Builder
	fmt.Fprintf(&b, "A forwarded notification carried the billing account id %d for %s; the client store was updated.\n\n",
		*res.Client.AccountID, res.Client.Name)
	writePayment(&b, res)

	return notify.Event{
		Kind:      notify.KindClientIDUpdated,
		Subject:   "Pix client account id learned: " + res.Client.Name,
		Body:      b.String(),
		Client:    res.Client.Name,
		AccountID: res.Client.AccountID,
		RunID:     res.RunID,
		At:        at,
	}
}

func amountMismatchEvent(res *Result, at time.Time) notify.Event {
	var b strings.Builder
	fmt.Fprintf(&b, "No open invoice or combination of invoices matches the payment; nothing was recorded.\n\n")
	writePayment(&b, res)
	if out := res.Settlement; out != nil && len(out.OpenInvoices) > 0 {
		b.WriteString("\nOpen invoices:\n")
		for _, inv := range out.OpenInvoices {
			fmt.Fprintf(&b, "  #%d  %s\n", inv.ID, inv.Total.BRL())
		}
	}

	return notify.Event{
		Kind:      notify.KindAmountMismatch,
		Subject:   "Pix payment needs manual reconciliation: " + res.Client.Name,
		Body:      b.String(),
		Client:    res.Client.Name,
		AccountID: res.Client.AccountID,
		RunID:     res.RunID,
		At:        at,
	}
}

func writePayment(b *strings.Builder, res *Result) {
	p := res.Payment
	fmt.Fprintf(b, "Payer:   %s\n", p.PayerName)
	fmt.Fprintf(b, "Amount:  %s\n", p.Amount.BRL())
	if p.OccurredAt != "" {
		fmt.Fprintf(b, "When:    %s\n", p.OccurredAt)
	}
	fmt.Fprintf(b, "Message: %s\n", p.Class)
	fmt.Fprintf(b, "Run:     %s\n", res.RunID)
}
