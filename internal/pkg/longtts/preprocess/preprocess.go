package preprocess

import (
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"
)

var (
	whitespaceRe = regexp.MustCompile(`\s+`)
	controlRe    = regexp.MustCompile(`[\x00-\x08\x0b\x0c\x0e-\x1f\x7f]`)
)

type Options struct {
	// ExpandNumbers verbalizes currency amounts, clock times, ordinals and
	// plain integers before synthesis.
	ExpandNumbers bool
}

type Preprocessor struct {
	opts Options
}

func NewPreprocessor(opts Options) *Preprocessor {
	return &Preprocessor{opts: opts}
}

// Process normalizes text for the sentence tokenizer and the model. Sentence
// punctuation is preserved so boundaries survive normalization.
func (p *Preprocessor) Process(text string) string {
	text = norm.NFC.String(text)
	text = controlRe.ReplaceAllString(text, "")
	text = normalizeQuotes(text)
	text = normalizePunctuation(text)
	if p.opts.ExpandNumbers {
		text = expandCurrency(text)
		text = expandTime(text)
		text = expandOrdinals(text)
		text = expandDecimals(text)
		text = expandNumbers(text)
	}
	text = whitespaceRe.ReplaceAllString(text, " ")
	text = strings.TrimSpace(text)

	return text
}

var onesWords = []string{
	"", "one", "two", "three", "four", "five", "six", "seven", "eight", "nine",
	"ten", "eleven", "twelve", "thirteen", "fourteen", "fifteen", "sixteen",
	"seventeen", "eighteen", "nineteen",
}

var tensWords = []string{
	"", "", "twenty", "thirty", "forty", "fifty", "sixty", "seventy", "eighty", "ninety",
}

var scaleWords = []string{"", "thousand", "million", "billion", "trillion"}

// NumberToWords spells n in English, e.g. 1205 -> "one thousand two hundred five".
func NumberToWords(n int64) string {
	if n == 0 {
		return "zero"
	}

	negative := n < 0
	if negative {
		n = -n
	}

	var parts []string
	for scale := 0; n > 0 && scale < len(scaleWords); scale++ {
		group := int(n % 1000)
		if group > 0 {
			words := groupToWords(group)
			if scale > 0 {
				words += " " + scaleWords[scale]
			}
			parts = append([]string{words}, parts...)
		}
		n /= 1000
	}

	result := strings.Join(parts, " ")
	if negative {
		result = "minus " + result
	}
	return result
}

func groupToWords(n int) string {
	switch {
	case n == 0:
		return ""
	case n < 20:
		return onesWords[n]
	case n < 100:
		if n%10 == 0 {
			return tensWords[n/10]
		}
		return tensWords[n/10] + " " + onesWords[n%10]
	}

	hundreds := onesWords[n/100] + " hundred"
	if n%100 == 0 {
		return hundreds
	}
	return hundreds + " " + groupToWords(n%100)
}

// parseDigits reads an unsigned integer, ignoring thousands separators.
func parseDigits(s string) int64 {
	n, err := strconv.ParseInt(strings.ReplaceAll(s, ",", ""), 10, 64)
	if err != nil {
		return 0
	}
	return n
}

// groupedDigits matches 1,000 style integers; the bare form must come second
// so the grouped alternative wins at the same position.
const groupedDigits = `\d{1,3}(?:,\d{3}){1,4}|\d{1,15}`

var numberRe = regexp.MustCompile(`\b(?:` + groupedDigits + `)\b`)

func expandNumbers(text string) string {
	return numberRe.ReplaceAllStringFunc(text, func(match string) string {
		return NumberToWords(parseDigits(match))
	})
}

var currencyRe = regexp.MustCompile(`\$(` + groupedDigits + `)(?:\.(\d{2}))?\b`)

func expandCurrency(text string) string {
	return currencyRe.ReplaceAllStringFunc(text, func(match string) string {
		parts := currencyRe.FindStringSubmatch(match)
		dollars := parseDigits(parts[1])

		result := NumberToWords(dollars) + " dollars"
		if dollars == 1 {
			result = "one dollar"
		}

		if parts[2] != "" && parts[2] != "00" {
			cents := parseDigits(parts[2])
			result += " and " + NumberToWords(cents)
			if cents == 1 {
				result += " cent"
			} else {
				result += " cents"
			}
		}
		return result
	})
}

var decimalRe = regexp.MustCompile(`\b(` + groupedDigits + `)\.(\d+)\b`)

var digitWords = []string{"zero", "one", "two", "three", "four", "five", "six", "seven", "eight", "nine"}

// expandDecimals reads the fraction digit by digit: 3.14 -> three point one four.
func expandDecimals(text string) string {
	return decimalRe.ReplaceAllStringFunc(text, func(match string) string {
		parts := decimalRe.FindStringSubmatch(match)

		words := []string{NumberToWords(parseDigits(parts[1])), "point"}
		for _, d := range parts[2] {
			words = append(words, digitWords[d-'0'])
		}
		return strings.Join(words, " ")
	})
}

var timeRe = regexp.MustCompile(`\b(\d{1,2}):(\d{2})(?:\s*([aApP][mM]))?\b`)

func expandTime(text string) string {
	return timeRe.ReplaceAllStringFunc(text, func(match string) string {
		parts := timeRe.FindStringSubmatch(match)
		hour, minute := parseDigits(parts[1]), parseDigits(parts[2])
		if hour > 23 || minute > 59 {
			return match
		}

		result := NumberToWords(hour)
		switch {
		case minute == 0 && parts[3] == "":
			result += " o'clock"
		case minute == 0:
		case minute < 10:
			result += " oh " + NumberToWords(minute)
		default:
			result += " " + NumberToWords(minute)
		}
		if parts[3] != "" {
			result += " " + strings.ToLower(parts[3])
		}
		return result
	})
}

var ordinalRe = regexp.MustCompile(`\b(` + groupedDigits + `)(?:st|nd|rd|th)\b`)

var ordinalWords = map[string]string{
	"one": "first", "two": "second", "three": "third", "four": "fourth",
	"five": "fifth", "six": "sixth", "seven": "seventh", "eight": "eighth",
	"nine": "ninth", "ten": "tenth", "eleven": "eleventh", "twelve": "twelfth",
	"twenty": "twentieth", "thirty": "thirtieth", "forty": "fortieth",
	"fifty": "fiftieth", "sixty": "sixtieth", "seventy": "seventieth",
	"eighty": "eightieth", "ninety": "ninetieth",
}

func expandOrdinals(text string) string {
	return ordinalRe.ReplaceAllStringFunc(text, func(match string) string {
		parts := ordinalRe.FindStringSubmatch(match)
		words := strings.Fields(NumberToWords(parseDigits(parts[1])))
		last := words[len(words)-1]
		if ord, ok := ordinalWords[last]; ok {
			words[len(words)-1] = ord
		} else {
			words[len(words)-1] = last + "th"
		}
		return strings.Join(words, " ")
	})
}

var quoteReplacer = strings.NewReplacer(
	"\u201c", "\"",
	"\u201d", "\"",
	"\u201e", "\"",
	"\u00ab", "\"",
	"\u00bb", "\"",
	"\u2018", "'",
	"\u2019", "'",
	"\u201a", "'",
)

func normalizeQuotes(text string) string {
	return quoteReplacer.Replace(text)
}

var punctuationReplacer = strings.NewReplacer(
	"\u2014", ", ",
	"\u2013", ", ",
	"\u2026", "...",
	"\u2022", ",",
	"\u00a0", " ",
)

func normalizePunctuation(text string) string {
	return punctuationReplacer.Replace(text)
}
