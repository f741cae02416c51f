package cart

import (
	"time"

	"github.com/shopspring/decimal"
)

type Address struct {
	FirstName   string
	LastName    string
	CompanyName string
	Line1       string
	Line2       string
	City        string
	State       string
	ZipCode     string
	CountryCode string
	Phone       string
	Email       string
}

func (a Address) FullName() string {
	switch {
	case a.FirstName == "":
		return a.LastName
	case a.LastName == "":
		return a.FirstName
	}
	return a.FirstName + " " + a.LastName
}

type Item struct {
	ID          int64
	ProductID   int64
	ProductName string
	SKU         string
	Quantity    int
	// UnitPrice is the gross price of one unit, tax included.
	UnitPrice decimal.Decimal
	// TaxRate is a percentage, e.g. 19 for 19%.
	TaxRate decimal.Decimal
}

// LineTotal is the gross price of the line.
func (i Item) LineTotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// LineTax is the tax share contained in the gross line total.
func (i Item) LineTax() decimal.Decimal {
	if i.TaxRate.IsZero() {
		return decimal.Zero
	}
	hundred := decimal.NewFromInt(100)
	return i.LineTotal().Mul(i.TaxRate).Div(hundred.Add(i.TaxRate))
}

type Cart struct {
	ID         int64
	SessionKey string
	Items      []Item
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (c *Cart) Subtotal() decimal.Decimal {
	total := decimal.Zero
	for _, it := range c.Items {
		total = total.Add(it.LineTotal())
	}
	return total
}

func (c *Cart) Tax() decimal.Decimal {
	total := decimal.Zero
	for _, it := range c.Items {
		total = total.Add(it.LineTax())
	}
	return total.Round(2)
}

// Customer is the checkout data the shop keeps per session.
type Customer struct {
	SessionKey      string
	Email           string
	ShippingAddress Address
	InvoiceAddress  Address
	ShippingPrice   decimal.Decimal
	Currency        string
}

// GrossTotal is the amount charged for the cart: items plus shipping, rounded
// half-up to two decimal places.
func GrossTotal(c *Cart, cust *Customer) decimal.Decimal {
	total := c.Subtotal()
	if cust != nil {
		total = total.Add(cust.ShippingPrice)
	}
	return RoundAmount(total)
}

// RoundAmount rounds a non-negative amount half-up to cents. decimal.Round
// rounds half away from zero, which is half-up for the amounts handled here.
func RoundAmount(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}
