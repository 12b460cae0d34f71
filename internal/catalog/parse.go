package catalog

import (
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/html"
)

const (
	cardClass     = "product-grid-list-item"
	nameClass     = "product-item-name"
	altNameClass  = "product-title"
	priceClass    = "product-item-price"
	colorsClass   = "product-item-colors"
	productLinkID = "/product/"
)

var priceRe = regexp.MustCompile(`\$\s*([0-9][0-9,]*(?:\.[0-9]{1,2})?)`)

// ParseEntries extracts product cards from a catalog listing page.
//
// Cards without a name are skipped. A page that parses cleanly but yields no
// cards is returned as an empty slice, not an error.
func ParseEntries(r io.Reader, pageURL string, now time.Time) ([]Entry, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, err
	}

	base := linkBase(pageURL)
	var entries []Entry
	idx := 0
	for _, card := range findAllByClass(doc, cardClass) {
		e, ok := parseCard(card, base, idx, now)
		idx++
		if ok {
			entries = append(entries, e)
		}
	}
	return entries, nil
}

func parseCard(card *html.Node, base string, idx int, now time.Time) (Entry, bool) {
	name := firstTextByClass(card, nameClass)
	if name == "" {
		name = firstTextByClass(card, altNameClass)
	}
	if name == "" {
		return Entry{}, false
	}

	priceText := firstTextByClass(card, priceClass)
	colorway := firstTextByClass(card, colorsClass)

	link := productLink(card)
	if link != "" && !strings.HasPrefix(link, "http") {
		link = base + link
	}

	id := entryID(link, idx)

	var price *float64
	if m := priceRe.FindStringSubmatch(priceText); m != nil {
		if v, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", ""), 64); err == nil {
			price = &v
		}
	}

	return Entry{
		ID:           id,
		Name:         name,
		Price:        price,
		PriceText:    priceText,
		Colorway:     colorway,
		Availability: classifyAvailability(nodeText(card)),
		Link:         link,
		LastSeen:     now,
	}, true
}

// entryID derives a stable identity from the canonical product link, falling
// back to a positional ID when the card carries no link at all.
func entryID(link string, idx int) string {
	if link == "" {
		return fmt.Sprintf("product-%d", idx)
	}
	trimmed := strings.TrimRight(link, "/")
	if i := strings.LastIndex(trimmed, "/"); i >= 0 && i+1 < len(trimmed) {
		return trimmed[i+1:]
	}
	return trimmed
}

func classifyAvailability(cardText string) Availability {
	t := strings.ToLower(cardText)
	switch {
	case strings.Contains(t, "available"):
		return StatusAvailable
	case strings.Contains(t, "out of stock"):
		return StatusOutOfStock
	case strings.Contains(t, "sold out"):
		return StatusSoldOut
	default:
		return StatusUnknown
	}
}

// ---- html tree helpers ----

func hasClass(n *html.Node, class string) bool {
	if n.Type != html.ElementNode {
		return false
	}
	for _, a := range n.Attr {
		if a.Key != "class" {
			continue
		}
		for _, c := range strings.Fields(a.Val) {
			if c == class {
				return true
			}
		}
	}
	return false
}

func findAllByClass(root *html.Node, class string) []*html.Node {
	var out []*html.Node
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if hasClass(n, class) {
			out = append(out, n)
			// Cards don't nest; no need to descend into a match.
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return out
}

func firstTextByClass(root *html.Node, class string) string {
	for _, n := range findAllByClass(root, class) {
		if t := strings.TrimSpace(nodeText(n)); t != "" {
			return t
		}
	}
	return ""
}

func productLink(root *html.Node) string {
	var link string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if link != "" {
			return
		}
		if n.Type == html.ElementNode && n.Data == "a" {
			for _, a := range n.Attr {
				if a.Key == "href" && strings.Contains(a.Val, productLinkID) {
					link = a.Val
					return
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return link
}

func nodeText(n *html.Node) string {
	var b strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
			b.WriteString(" ")
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.TrimSpace(b.String())
}
