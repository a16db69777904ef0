package lead

import (
	"fmt"
	"strings"

	"sales-assistant/internal/domain"
)

// Company identifies the business in receipts sent to captured leads.
type Company struct {
	Name    string
	Site    string
	Contact Contact
}

const receiptRule = "================================================================"

// RenderReceipt renders the plain-text contact confirmation for a lead.
func RenderReceipt(lead domain.LeadData, c Company) string {
	var b strings.Builder
	line := func(format string, args ...any) {
		fmt.Fprintf(&b, format+"\n", args...)
	}
	section := func(title string) {
		line("")
		line(receiptRule)
		line("%s", centered(title, len(receiptRule)))
		line(receiptRule)
		line("")
	}

	line(receiptRule)
	line("%s", centered(strings.ToUpper(c.Name), len(receiptRule)))
	line("%s", centered("CONTACT CONFIRMATION", len(receiptRule)))
	line(receiptRule)
	line("")
	line("Date: %s", lead.Timestamp.UTC().Format("2006-01-02 15:04 MST"))
	line("")
	line("Hello!")
	line("")
	line("We have received your details and will contact you shortly.")
	line("By using our chat you agree that we process this information")
	line("in order to contact you.")

	section("CONTACT INFORMATION")
	line("Email:       %s", orDefault(lead.Email, "Not provided"))
	line("Phone:       %s", orDefault(lead.Phone, "Not provided"))
	line("Message:     %s", lead.Context)
	line("Source:      %s", lead.Source)
	line("Session ID:  %s", orDefault(lead.SessionID, "N/A"))
	line("Reference:   %s", lead.ID)

	section("NEXT STEPS")
	line("- Your request has been registered")
	line("- We will contact you within 2 hours")
	line("- Free consultation over coffee")
	line("- A solution tailored to your business")

	section("CONTACT US DIRECTLY")
	if c.Contact.Email != "" {
		line("Email:    %s", c.Contact.Email)
	}
	if c.Contact.Phone != "" {
		line("Phone:    %s", c.Contact.Phone)
	}
	if c.Site != "" {
		line("Website:  %s", c.Site)
	}
	line("")
	line("Thank you for choosing %s!", c.Name)
	if c.Contact.Name != "" {
		line("")
		line("Kind regards,")
		line("%s & the %s team", c.Contact.Name, c.Name)
	}
	line("")
	line(receiptRule)
	return b.String()
}

// ReceiptSubject is the subject line used when a receipt is mailed.
func ReceiptSubject(c Company) string {
	return fmt.Sprintf("%s: we received your contact request", c.Name)
}

func centered(s string, width int) string {
	pad := (width - len(s)) / 2
	if pad <= 0 {
		return s
	}
	return strings.Repeat(" ", pad) + s
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}
