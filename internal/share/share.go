// Package share renders a shopping plan as things that leave the app:
// a reconstructible URL, an SMS body and a mailto link.
package share

import (
	"fmt"
	"net/url"
	"strings"

	"SmartGrocer/internal/plan"
	"SmartGrocer/internal/session"
)

type Builder struct {
	BaseURL string
}

// Link embeds the selection in the base URL as an items query
// parameter. Decoding the parameter reproduces the selection exactly.
func (b *Builder) Link(ids []int) string {
	code := session.EncodeIDs(ids)
	if code == "" {
		return b.BaseURL
	}
	return b.BaseURL + "?items=" + code
}

// Text renders the plain-text shopping list: list name, one block per
// store with its lines and subtotal, then the grand total.
func Text(name string, p plan.Plan) string {
	var sb strings.Builder

	if name != "" {
		sb.WriteString(name)
		sb.WriteString("\n\n")
	}

	for _, g := range p.Groups {
		fmt.Fprintf(&sb, "%s (%s):\n", g.Store, Dollars(g.SubtotalCents))
		for _, line := range g.Items {
			fmt.Fprintf(&sb, "- %s: %s\n", line.Name, Dollars(line.PriceCents))
		}
	}

	fmt.Fprintf(&sb, "Total: %s", Dollars(p.GrandTotalCents))
	return sb.String()
}

// SMSLink builds an sms: deep link carrying the list as the message
// body. Reserved characters are escaped since the text rides inside a
// URL.
func (b *Builder) SMSLink(name string, p plan.Plan) string {
	return "sms:?&body=" + url.QueryEscape(Text(name, p))
}

// MailtoLink builds a mailto: link with the list name as subject and
// the rendered list as body.
func (b *Builder) MailtoLink(name string, p plan.Plan) string {
	subject := name
	if subject == "" {
		subject = "Shopping List"
	}
	return "mailto:?subject=" + url.QueryEscape(subject) + "&body=" + url.QueryEscape(Text(name, p))
}

// Dollars formats cents as a currency string, e.g. 350 -> "$3.50".
func Dollars(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s$%d.%02d", sign, cents/100, cents%100)
}
