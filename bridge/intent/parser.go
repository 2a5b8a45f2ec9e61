package intent

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Slot holds the free text found for one side of a transfer
type Slot struct {
	AssetText string `json:"asset_text,omitempty"`
	ChainText string `json:"chain_text,omitempty"`
}

func (s Slot) Empty() bool {
	return s.AssetText == "" && s.ChainText == ""
}

// Parsed is the structured form of a transfer description. Amount is empty when
// the text does not start with a number.
type Parsed struct {
	Amount string `json:"amount,omitempty"`
	Src    Slot   `json:"src"`
	Dst    Slot   `json:"dst"`
}

var arrows = strings.NewReplacer("->", " to ", "=>", " to ", "→", " to ")

// leading verbs people type before the amount
var verbs = map[string]bool{
	"swap":     true,
	"bridge":   true,
	"send":     true,
	"transfer": true,
	"move":     true,
}

type field int

const (
	srcAsset field = iota
	srcChain
	dstAsset
	dstChain
)

// Parse splits text like "100 USDC from Ethereum to iUSD on Cabal" into slots.
// Arrows count as "to". "on" names the source chain before the first "to" and
// the destination chain after it.
func Parse(text string) Parsed {
	tokens := strings.Fields(arrows.Replace(text))
	if len(tokens) > 0 && verbs[strings.ToLower(tokens[0])] {
		tokens = tokens[1:]
	}

	var out Parsed
	if len(tokens) > 0 {
		if amount, ok := parseAmount(tokens[0]); ok {
			out.Amount = amount
			tokens = tokens[1:]
		}
	}

	words := make(map[field][]string, 4)
	current := srcAsset
	seenTo := false
	for _, tok := range tokens {
		switch strings.ToLower(tok) {
		case "from":
			current = srcChain
		case "to":
			seenTo = true
			current = dstAsset
		case "on":
			if seenTo {
				current = dstChain
			} else {
				current = srcChain
			}
		default:
			words[current] = append(words[current], tok)
		}
	}

	out.Src = Slot{AssetText: strings.Join(words[srcAsset], " "), ChainText: strings.Join(words[srcChain], " ")}
	out.Dst = Slot{AssetText: strings.Join(words[dstAsset], " "), ChainText: strings.Join(words[dstChain], " ")}
	return out
}

// parseAmount accepts "1,000.5" style numbers and returns them without separators
func parseAmount(tok string) (string, bool) {
	stripped := strings.ReplaceAll(tok, ",", "")
	if stripped == "" || strings.ContainsAny(stripped, "eE+-") {
		return "", false
	}
	d, err := decimal.NewFromString(stripped)
	if err != nil || d.IsNegative() {
		return "", false
	}
	return stripped, true
}
