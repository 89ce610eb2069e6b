package currency

import "sort"

// commonNames is the catalog used when no currency list can be fetched.
var commonNames = map[string]string{
	"AED": "UAE Dirham",
	"ARS": "Argentine Peso",
	"AUD": "Australian Dollar",
	"BRL": "Brazilian Real",
	"CAD": "Canadian Dollar",
	"CHF": "Swiss Franc",
	"CLP": "Chilean Peso",
	"CNY": "Chinese Yuan Renminbi",
	"COP": "Colombian Peso",
	"CZK": "Czech Koruna",
	"DKK": "Danish Krone",
	"EGP": "Egyptian Pound",
	"EUR": "Euro",
	"GBP": "British Pound",
	"HKD": "Hong Kong Dollar",
	"HUF": "Hungarian Forint",
	"IDR": "Indonesian Rupiah",
	"ILS": "Israeli New Shekel",
	"INR": "Indian Rupee",
	"JPY": "Japanese Yen",
	"KRW": "South Korean Won",
	"MXN": "Mexican Peso",
	"MYR": "Malaysian Ringgit",
	"NOK": "Norwegian Krone",
	"NZD": "New Zealand Dollar",
	"PHP": "Philippine Peso",
	"PKR": "Pakistani Rupee",
	"PLN": "Polish Zloty",
	"RON": "Romanian Leu",
	"RUB": "Russian Ruble",
	"SAR": "Saudi Riyal",
	"SEK": "Swedish Krona",
	"SGD": "Singapore Dollar",
	"THB": "Thai Baht",
	"TRY": "Turkish Lira",
	"TWD": "New Taiwan Dollar",
	"UAH": "Ukrainian Hryvnia",
	"USD": "US Dollar",
	"VND": "Vietnamese Dong",
	"ZAR": "South African Rand",
}

// Entry is one catalog currency.
type Entry struct {
	Code string
	Name string
}

// Fallback returns the built-in catalog, limited to codes go-money knows,
// sorted by code.
func Fallback() []Entry {
	out := make([]Entry, 0, len(commonNames))
	for code, name := range commonNames {
		if Known(code) {
			out = append(out, Entry{Code: code, Name: name})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

// FromNames turns a code->name table into catalog entries. Codes longer than
// three letters (crypto tokens and the like) are dropped.
func FromNames(names map[string]string) []Entry {
	out := make([]Entry, 0, len(names))
	for code, name := range names {
		c := Normalize(code)
		if c == "" || len(c) > 3 {
			continue
		}
		out = append(out, Entry{Code: c, Name: name})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}
