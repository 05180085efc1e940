package email

import (
	"fmt"
	"html"
	"time"
)

// StockAlert describes a product whose stock fell to the alert threshold
type StockAlert struct {
	ProductID int64
	Name      string
	Category  string
	Quantity  int
	Action    string
	At        time.Time
}

// Subject returns the alert subject line
func (a StockAlert) Subject() string {
	if a.Quantity == 0 {
		return fmt.Sprintf("[Inventory] %s is out of stock", a.Name)
	}
	return fmt.Sprintf("[Inventory] %s is low on stock (%d left)", a.Name, a.Quantity)
}

// BuildStockAlertBody builds the HTML body for a stock alert email
func BuildStockAlertBody(a StockAlert) string {
	status := "Low stock"
	color := "#f0ad4e"
	if a.Quantity == 0 {
		status = "Out of stock"
		color = "#d9534f"
	}

	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<head>
	<meta charset="UTF-8">
</head>
<body style="font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px;">
	<div style="background: %s; padding: 20px; border-radius: 10px 10px 0 0;">
		<h1 style="color: white; margin: 0; font-size: 22px;">%s</h1>
	</div>

	<div style="background: #fff; padding: 20px; border: 1px solid #eee; border-top: none; border-radius: 0 0 10px 10px;">
		<table style="width: 100%%; border-collapse: collapse;">
			<tr><td style="padding: 8px; color: #666;">Product</td><td style="padding: 8px; font-weight: bold;">%s</td></tr>
			<tr><td style="padding: 8px; color: #666;">Product ID</td><td style="padding: 8px; font-family: monospace;">%d</td></tr>
			<tr><td style="padding: 8px; color: #666;">Category</td><td style="padding: 8px;">%s</td></tr>
			<tr><td style="padding: 8px; color: #666;">Quantity</td><td style="padding: 8px;">%d</td></tr>
			<tr><td style="padding: 8px; color: #666;">Event</td><td style="padding: 8px;">%s at %s</td></tr>
		</table>
	</div>
</body>
</html>`,
		color,
		status,
		html.EscapeString(a.Name),
		a.ProductID,
		html.EscapeString(a.Category),
		a.Quantity,
		html.EscapeString(a.Action),
		a.At.UTC().Format(time.RFC3339),
	)
}
