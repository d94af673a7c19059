package scanner

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStringField(t *testing.T) {
	testCases := []struct {
		desc    string
		payload string
		key     string
		want    string
		ok      bool
	}{
		{"plain", `{"type":"trade","symbol":"BTC/USDT"}`, "type", "trade", true},
		{"spaces", `{ "symbol" : "BTC/USDT" }`, "symbol", "BTC/USDT", true},
		{"key inside value", `{"note":"type","type":"mark"}`, "type", "mark", true},
		{"number value", `{"price":100}`, "price", "", false},
		{"missing", `{"price":"100"}`, "type", "", false},
		{"unterminated", `{"type":"tra`, "type", "", false},
	}

	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			got, ok := StringField([]byte(tc.payload), tc.key)
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.want, string(got))
		})
	}
}

func TestNumberField(t *testing.T) {
	testCases := []struct {
		desc    string
		payload string
		key     string
		want    string
		ok      bool
	}{
		{"integer", `{"timestamp":1700000000,"x":1}`, "timestamp", "1700000000", true},
		{"fraction", `{"timestamp": 1700000000.25}`, "timestamp", "1700000000.25", true},
		{"negative", `{"rate":-0.0001}`, "rate", "-0.0001", true},
		{"quoted", `{"timestamp":"1"}`, "timestamp", "", false},
		{"missing", `{}`, "timestamp", "", false},
	}

	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			got, ok := NumberField([]byte(tc.payload), tc.key)
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.want, string(got))
		})
	}
}
