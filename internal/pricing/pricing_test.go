package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/studio-booking/internal/model"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func item(price string, qty int) ItemLine {
	return ItemLine{
		Item:     model.InventoryItem{Price: dec(price), Quantity: qty + 1},
		Quantity: qty,
	}
}

func TestTwoHoursNoExtras(t *testing.T) {
	q := Build(120, dec("500.00"), nil, nil)

	assert.True(t, q.BaseCost.Equal(dec("1000.00")), "base=%s", q.BaseCost)
	assert.True(t, q.AddOnsCost.Equal(decimal.Zero))
	assert.True(t, q.InventoryCost.Equal(decimal.Zero))
	assert.True(t, q.Total.Equal(dec("1000.00")))
	// deposit = min(1000*0.5, 500) = 500
	assert.True(t, q.Deposit.Equal(dec("500.00")), "deposit=%s", q.Deposit)
}

func TestHalfHourGranularityScalesBase(t *testing.T) {
	q := Build(90, dec("500.00"), nil, nil)
	assert.True(t, q.BaseCost.Equal(dec("750.00")), "base=%s", q.BaseCost)
	// deposit = min(375, 500) = 375
	assert.True(t, q.Deposit.Equal(dec("375.00")), "deposit=%s", q.Deposit)
}

func TestAddOnsAndInventoryAreFlat(t *testing.T) {
	addOns := []model.AddOn{
		{Name: "backdrop change", Price: dec("150.00")},
		{Name: "lighting assistant", Price: dec("299.99")},
	}
	items := []ItemLine{item("120.50", 2), item("80.00", 1)}

	q := Build(180, dec("400.00"), addOns, items)

	assert.True(t, q.BaseCost.Equal(dec("1200.00")))
	assert.True(t, q.AddOnsCost.Equal(dec("449.99")))
	assert.True(t, q.InventoryCost.Equal(dec("321.00")), "inventory=%s", q.InventoryCost)
	assert.True(t, q.Total.Equal(dec("1970.99")))
	// half the total exceeds one hour's rate, so the cap applies
	assert.True(t, q.Deposit.Equal(dec("400.00")), "deposit=%s", q.Deposit)
}

func TestDepositCapProperty(t *testing.T) {
	cases := []struct{ total, rate string }{
		{"1000.00", "500.00"},
		{"999.99", "500.00"},
		{"100.00", "500.00"},
		{"0.01", "500.00"},
		{"10000.00", "350.00"},
	}
	for _, tc := range cases {
		got := Deposit(dec(tc.total), dec(tc.rate))
		half := dec(tc.total).Mul(decimal.NewFromFloat(0.5))
		rate := dec(tc.rate)
		want := half
		if want.GreaterThan(rate) {
			want = rate
		}
		want = want.Round(2)
		assert.True(t, got.Equal(want), "total=%s rate=%s got=%s want=%s", tc.total, tc.rate, got, want)
	}
}

func TestRoundHalfUp(t *testing.T) {
	// 499.995 must round up, not to even
	got := Deposit(dec("999.99"), dec("10000.00"))
	assert.Equal(t, "500", got.String())
	require.True(t, got.Equal(dec("500.00")))
}

func TestQuoteDeterministic(t *testing.T) {
	addOns := []model.AddOn{{Price: dec("150.00")}}
	items := []ItemLine{item("99.99", 3)}

	a := Build(150, dec("450.00"), addOns, items)
	b := Build(150, dec("450.00"), addOns, items)

	assert.Equal(t, a.Total.String(), b.Total.String())
	assert.Equal(t, a.Deposit.String(), b.Deposit.String())
	assert.Equal(t, a.BaseCost.String(), b.BaseCost.String())
}

func TestRecomputeWithNoNewItemsMatches(t *testing.T) {
	base := Build(120, dec("500.00"), nil, nil)
	again := Build(120, dec("500.00"), []model.AddOn{}, []ItemLine{})
	assert.Equal(t, base.Total.String(), again.Total.String())
	assert.Equal(t, base.Deposit.String(), again.Deposit.String())
}
