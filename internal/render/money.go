/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package render

import (
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// DefaultCurrency is used when neither invoice data nor template name one.
const DefaultCurrency = "USD"

var symbols = map[string]string{
	"USD": "$",
	"KES": "Ksh",
	"EUR": "€",
	"GBP": "£",
	"NGN": "₦",
	"INR": "₹",
	"ZAR": "R",
}

// Symbol returns the display symbol for an ISO currency code. Unknown codes get "$".
func Symbol(code string) string {
	if s, ok := symbols[strings.ToUpper(strings.TrimSpace(code))]; ok {
		return s
	}
	return "$"
}

func newPrinter() *message.Printer { return message.NewPrinter(language.English) }

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

// decimalOf converts v for formatting. NaN and infinities count as zero.
func decimalOf(v float64) decimal.Decimal {
	if !finite(v) {
		return decimal.Zero
	}
	return decimal.NewFromFloat(v)
}

// Money formats v with the currency symbol, thousands separators and two decimals,
// e.g. "Ksh1,500.00" or "-$25.00".
func Money(v float64, currency string) string {
	d := decimalOf(v).Round(2)
	sign := ""
	if d.IsNegative() {
		sign = "-"
		d = d.Neg()
	}
	return sign + Symbol(currency) + newPrinter().Sprintf("%.2f", d.InexactFloat64())
}

// Number formats a plain quantity: integers without decimals, others with up to
// two decimals.
func Number(v float64) string {
	d := decimalOf(v).Round(2)
	if d.IsInteger() {
		return newPrinter().Sprintf("%d", d.IntPart())
	}
	return strings.TrimRight(strings.TrimRight(d.StringFixed(2), "0"), ".")
}

// Percent formats v as a percentage, e.g. "16%".
func Percent(v float64) string {
	return strconv.FormatFloat(decimalOf(v).Round(2).InexactFloat64(), 'f', -1, 64) + "%"
}
