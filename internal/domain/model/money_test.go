package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMoney(t *testing.T) {
	tests := []struct {
		in      string
		want    Money
		wantErr bool
	}{
		{in: "12.50", want: 1250},
		{in: "12.5", want: 1250},
		{in: "12", want: 1200},
		{in: ".99", want: 99},
		{in: "-3.01", want: -301},
		{in: "0", want: 0},
		{in: "1.999", wantErr: true},
		{in: "12.", wantErr: true},
		{in: "abc", wantErr: true},
		{in: "", wantErr: true},
		{in: "1e3", wantErr: true},
		{in: "92233720368547758.00", wantErr: true},
		{in: "-92233720368547758", wantErr: true},
		{in: "99999999999999999999", wantErr: true},
		{in: "92233720368547757.99", want: 9223372036854775799},
	}
	for _, tt := range tests {
		got, err := ParseMoney(tt.in)
		if tt.wantErr {
			assert.ErrorIs(t, err, ErrInvalidMoney, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestMoney_JSON(t *testing.T) {
	b, err := json.Marshal(struct {
		Total Money `json:"total"`
	}{Total: 1005})
	require.NoError(t, err)
	assert.JSONEq(t, `{"total":10.05}`, string(b))

	var in struct {
		A Money `json:"a"`
		B Money `json:"b"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a":"4.20","b":3.5}`), &in))
	assert.Equal(t, Money(420), in.A)
	assert.Equal(t, Money(350), in.B)
}

func TestMoney_Mul(t *testing.T) {
	assert.Equal(t, Money(3000), Money(1000).Mul(3))
	assert.Equal(t, "-0.05", Money(-5).String())
}

func TestStockLevel(t *testing.T) {
	assert.Equal(t, StockLevelOut, Product{StockQuantity: 0}.StockLevel())
	assert.Equal(t, StockLevelLow, Product{StockQuantity: LowStockThreshold}.StockLevel())
	assert.Equal(t, StockLevelIn, Product{StockQuantity: LowStockThreshold + 1}.StockLevel())
}

func TestOrderStatus_Terminal(t *testing.T) {
	assert.True(t, OrderStatusDelivered.IsTerminal())
	assert.True(t, OrderStatusCancelled.IsTerminal())
	assert.False(t, OrderStatusReady.IsTerminal())
	assert.False(t, OrderStatus("approved").Valid())
}
