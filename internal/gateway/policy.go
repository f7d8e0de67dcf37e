package gateway

import (
	"fmt"
	"math"
	"strings"

	errors "github.com/Emolus-Dev/payments/internal"
)

// Settlement currencies Stripe accepts. Codes absent from this set are
// rejected before any provider call.
var supportedCurrencies = map[string]struct{}{
	"AED": {}, "ALL": {}, "ANG": {}, "ARS": {}, "AUD": {}, "AWG": {},
	"BBD": {}, "BDT": {}, "BIF": {}, "BMD": {}, "BND": {}, "BOB": {},
	"BRL": {}, "BSD": {}, "BWP": {}, "BZD": {}, "CAD": {}, "CHF": {},
	"CLP": {}, "CNY": {}, "COP": {}, "CRC": {}, "CVE": {}, "CZK": {},
	"DJF": {}, "DKK": {}, "DOP": {}, "DZD": {}, "EGP": {}, "ETB": {},
	"EUR": {}, "FJD": {}, "FKP": {}, "GBP": {}, "GIP": {}, "GMD": {},
	"GNF": {}, "GTQ": {}, "GYD": {}, "HKD": {}, "HNL": {}, "HRK": {},
	"HTG": {}, "HUF": {}, "IDR": {}, "ILS": {}, "INR": {}, "ISK": {},
	"JMD": {}, "JPY": {}, "KES": {}, "KHR": {}, "KMF": {}, "KRW": {},
	"KYD": {}, "KZT": {}, "LAK": {}, "LBP": {}, "LKR": {}, "LRD": {},
	"MAD": {}, "MDL": {}, "MNT": {}, "MOP": {}, "MRO": {}, "MUR": {},
	"MVR": {}, "MWK": {}, "MXN": {}, "MYR": {}, "NAD": {}, "NGN": {},
	"NIO": {}, "NOK": {}, "NPR": {}, "NZD": {}, "PAB": {}, "PEN": {},
	"PGK": {}, "PHP": {}, "PKR": {}, "PLN": {}, "PYG": {}, "QAR": {},
	"RUB": {}, "SAR": {}, "SBD": {}, "SCR": {}, "SEK": {}, "SGD": {},
	"SHP": {}, "SLL": {}, "SOS": {}, "STD": {}, "SVC": {}, "SZL": {},
	"THB": {}, "TOP": {}, "TTD": {}, "TWD": {}, "TZS": {}, "UAH": {},
	"UGX": {}, "USD": {}, "UYU": {}, "UZS": {}, "VND": {}, "VUV": {},
	"WST": {}, "XAF": {}, "XOF": {}, "XPF": {}, "YER": {}, "ZAR": {},
}

// Per-currency minimum chargeable amounts in major units. Currencies absent
// from the table have no minimum.
var minimumChargeAmount = map[string]float64{
	"JPY": 50,
	"MXN": 10,
	"DKK": 2.50,
	"HKD": 4.00,
	"NOK": 3.00,
	"SEK": 3.00,
	"USD": 0.50,
	"AUD": 0.50,
	"BRL": 0.50,
	"CAD": 0.50,
	"CHF": 0.50,
	"EUR": 0.50,
	"GBP": 0.30,
	"NZD": 0.50,
	"SGD": 0.50,
}

// ValidateTransactionCurrency rejects currencies Stripe cannot settle.
// Codes are matched case-insensitively; Stripe accepts either casing.
func ValidateTransactionCurrency(currency string) *errors.AppError {
	if _, ok := supportedCurrencies[strings.ToUpper(currency)]; !ok {
		return errors.NewValidationError(
			fmt.Sprintf("Please select another payment method. Stripe does not support transactions in currency '%s'", currency),
			errors.ErrCodeUnsupportedCurrency,
		)
	}
	return nil
}

// ValidateMinimumAmount rejects amounts below the currency's configured
// minimum. Negative amounts are always rejected.
func ValidateMinimumAmount(currency string, amount float64) *errors.AppError {
	if amount < 0 {
		return errors.NewValidationError("amount must not be negative", errors.ErrCodeInvalidAmount)
	}
	if min, ok := minimumChargeAmount[strings.ToUpper(currency)]; ok && amount < min {
		return errors.NewValidationError(
			fmt.Sprintf("For currency %s, the minimum transaction amount should be %v", currency, min),
			errors.ErrCodeAmountBelowMinimum,
		)
	}
	return nil
}

// MajorToMinor converts a major-unit amount to provider minor units.
// Exact for amounts with at most two decimal places.
func MajorToMinor(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

// MinorToMajor converts a provider minor-unit amount back to major units.
func MinorToMajor(minor int64) float64 {
	return float64(minor) / 100
}
